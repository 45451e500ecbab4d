package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingSetting is returned by Resolve when a required setting could not
// be found in any source.
var ErrMissingSetting = errors.New("missing setting")

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// OSEnv is the LookupFunc backed by the process environment.
var OSEnv LookupFunc = os.LookupEnv

// Overrides are values supplied explicitly with a request. Empty fields are
// unset.
type Overrides struct {
	Platform string
	APIKey   string
	BaseURL  string
	Model    string
}

// Fallback holds the last-resort values from glossa's configuration file.
type Fallback struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Source names where a resolved value came from.
type Source string

const (
	SourceNone     Source = ""
	SourceExplicit Source = "explicit"
	SourceEnv      Source = "env"
	SourcePreset   Source = "preset"
	SourceFallback Source = "fallback"
)

// Settings are the fully resolved values for one upstream call.
type Settings struct {
	Platform string
	APIKey   string
	BaseURL  string
	Model    string

	// Sources records where each value came from, for diagnostics.
	APIKeySource  Source
	BaseURLSource Source
	ModelSource   Source
}

// KeyOptional reports whether the resolved platform accepts requests without
// an API key.
func (s Settings) KeyOptional() bool {
	p, ok := Lookup(s.Platform)
	return ok && p.KeyOptional
}

// MaskedKey returns the API key with all but its last four characters hidden.
func (s Settings) MaskedKey() string {
	if s.APIKey == "" {
		return ""
	}
	if len(s.APIKey) <= 8 {
		return "****"
	}
	return "****" + s.APIKey[len(s.APIKey)-4:]
}

// Resolve determines the settings for a request. Each field is taken from
// the first source that provides a non-empty value:
//
//  1. the explicit override
//  2. the platform's environment variable (<PREFIX>_API_KEY, _BASE_URL, _MODEL)
//  3. the platform's default base URL or model
//  4. the configured fallback
//
// An empty platform is treated as custom. An unknown platform is an error.
// A missing base URL or model, or a missing API key for a platform that
// needs one, yields an error wrapping ErrMissingSetting.
func Resolve(in Overrides, env LookupFunc, fallback Fallback) (Settings, error) {
	name := strings.ToLower(strings.TrimSpace(in.Platform))
	if name == "" {
		name = Custom
	}

	preset, err := MustLookup(name)
	if err != nil {
		return Settings{}, err
	}

	if env == nil {
		env = func(string) (string, bool) { return "", false }
	}

	s := Settings{Platform: preset.Name}

	s.APIKey, s.APIKeySource = pick(
		strings.TrimSpace(in.APIKey),
		lookup(env, preset.APIKeyEnv()),
		"",
		fallback.APIKey,
	)
	s.BaseURL, s.BaseURLSource = pick(
		strings.TrimSpace(in.BaseURL),
		lookup(env, preset.BaseURLEnv()),
		preset.DefaultBaseURL,
		fallback.BaseURL,
	)
	s.Model, s.ModelSource = pick(
		strings.TrimSpace(in.Model),
		lookup(env, preset.ModelEnv()),
		preset.DefaultModel,
		fallback.Model,
	)

	switch {
	case s.APIKey == "" && !preset.KeyOptional:
		return s, missing("API key", preset)
	case s.BaseURL == "":
		return s, missing("base URL", preset)
	case s.Model == "":
		return s, missing("model", preset)
	}

	return s, nil
}

func pick(explicit, fromEnv, fromPreset, fromFallback string) (string, Source) {
	switch {
	case explicit != "":
		return explicit, SourceExplicit
	case fromEnv != "":
		return fromEnv, SourceEnv
	case fromPreset != "":
		return fromPreset, SourcePreset
	case fromFallback != "":
		return fromFallback, SourceFallback
	default:
		return "", SourceNone
	}
}

func lookup(env LookupFunc, key string) string {
	if key == "" {
		return ""
	}
	v, _ := env(key)
	return strings.TrimSpace(v)
}

func missing(field string, p Preset) error {
	if envName := p.envName(envSuffix(field)); envName != "" {
		return fmt.Errorf("%w: %s for platform %q (set it explicitly or via %s)", ErrMissingSetting, field, p.Name, envName)
	}
	return fmt.Errorf("%w: %s for platform %q", ErrMissingSetting, field, p.Name)
}

func envSuffix(field string) string {
	switch field {
	case "API key":
		return "API_KEY"
	case "base URL":
		return "BASE_URL"
	default:
		return "MODEL"
	}
}
