// Package platform holds the upstream presets glossa knows about and resolves
// the API key, base URL and model used for a translation request.
package platform

import (
	"fmt"
	"slices"
	"strings"
)

// Supported platform name constants
const (
	SiliconFlow = "siliconflow"
	DeepSeek    = "deepseek"
	Moonshot    = "moonshot"
	OpenAI      = "openai"
	Ollama      = "ollama"
	ModelScope  = "modelscope"
	OpenRouter  = "openrouter"
	Custom      = "custom"
)

// Preset describes a named upstream.
type Preset struct {
	// Name is the canonical, lowercase platform name.
	Name string `json:"name"`

	// EnvPrefix is prepended to _API_KEY, _BASE_URL and _MODEL when looking
	// up environment overrides. Empty for custom.
	EnvPrefix string `json:"env_prefix,omitempty"`

	// Host is matched against base URLs by Infer.
	Host string `json:"-"`

	DefaultBaseURL string `json:"default_base_url,omitempty"`
	DefaultModel   string `json:"default_model,omitempty"`

	// KeyOptional is set for local runtimes that accept unauthenticated
	// requests.
	KeyOptional bool `json:"key_optional,omitempty"`
}

// APIKeyEnv returns the environment variable holding the preset's API key.
func (p Preset) APIKeyEnv() string { return p.envName("API_KEY") }

// BaseURLEnv returns the environment variable holding the preset's base URL.
func (p Preset) BaseURLEnv() string { return p.envName("BASE_URL") }

// ModelEnv returns the environment variable holding the preset's model.
func (p Preset) ModelEnv() string { return p.envName("MODEL") }

func (p Preset) envName(suffix string) string {
	if p.EnvPrefix == "" {
		return ""
	}
	return p.EnvPrefix + "_" + suffix
}

var presets = []Preset{
	{
		Name:           SiliconFlow,
		EnvPrefix:      "SILICONFLOW",
		Host:           "api.siliconflow.cn",
		DefaultBaseURL: "https://api.siliconflow.cn/v1",
		DefaultModel:   "THUDM/GLM-4-9B-0414",
	},
	{
		Name:           DeepSeek,
		EnvPrefix:      "DEEPSEEK",
		Host:           "api.deepseek.com",
		DefaultBaseURL: "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
	},
	{
		Name:           Moonshot,
		EnvPrefix:      "MOONSHOT",
		Host:           "api.moonshot.cn",
		DefaultBaseURL: "https://api.moonshot.cn/v1",
		DefaultModel:   "moonshot-v1-8k",
	},
	{
		Name:           OpenAI,
		EnvPrefix:      "OPENAI",
		Host:           "api.openai.com",
		DefaultBaseURL: "https://api.openai.com/v1",
		DefaultModel:   "gpt-3.5-turbo",
	},
	{
		Name:           Ollama,
		EnvPrefix:      "OLLAMA",
		Host:           "localhost:11434",
		DefaultBaseURL: "http://localhost:11434/v1",
		DefaultModel:   "llama3",
		KeyOptional:    true,
	},
	{
		Name:           ModelScope,
		EnvPrefix:      "MODELSCOPE",
		Host:           "api-inference.modelscope.cn",
		DefaultBaseURL: "https://api-inference.modelscope.cn/v1",
		DefaultModel:   "Qwen/Qwen2.5-72B-Instruct",
	},
	{
		Name:           OpenRouter,
		EnvPrefix:      "OPENROUTER",
		Host:           "openrouter.ai",
		DefaultBaseURL: "https://openrouter.ai/api/v1",
		DefaultModel:   "google/gemini-2.0-flash-exp:free",
	},
	{
		Name: Custom,
	},
}

// Presets returns a copy of the preset table in display order.
func Presets() []Preset {
	return slices.Clone(presets)
}

// Names returns the names of every supported platform.
func Names() []string {
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return names
}

// Lookup returns the preset with the given name. Matching is
// case-insensitive and ignores surrounding whitespace.
func Lookup(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// MustLookup is like Lookup but returns an error naming the supported
// platforms when name is unknown.
func MustLookup(name string) (Preset, error) {
	p, ok := Lookup(name)
	if !ok {
		return Preset{}, fmt.Errorf("unknown platform: %q (supported: %v)", name, Names())
	}
	return p, nil
}

// Infer guesses the platform from a base URL by matching well-known hosts.
// It returns Custom when nothing matches.
func Infer(baseURL string) string {
	lower := strings.ToLower(baseURL)
	for _, p := range presets {
		if p.Host != "" && strings.Contains(lower, p.Host) {
			return p.Name
		}
	}
	return Custom
}
