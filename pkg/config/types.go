package config

import "github.com/papercomputeco/glossa/pkg/platform"

// Config represents the persistent glossa configuration stored as config.toml
// in the .glossa/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Server    ServerConfig    `toml:"server"`
	Client    ClientConfig    `toml:"client"`
	Translate TranslateConfig `toml:"translate"`
	Fallback  FallbackConfig  `toml:"fallback"`
}

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Listen    string `toml:"listen,omitempty"`
	OutputDir string `toml:"output_dir,omitempty"`
	UploadDir string `toml:"upload_dir,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running relay.
// RelayTarget is a full URL (scheme + host + port).
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
}

// TranslateConfig holds defaults for "glossa translate".
type TranslateConfig struct {
	Platform   string `toml:"platform,omitempty"`
	TargetLang string `toml:"target_lang,omitempty"`
	SourceLang string `toml:"source_lang,omitempty"`
	Encoding   string `toml:"encoding,omitempty"`
}

// FallbackConfig holds the global settings used by the relay when neither
// the request, the environment nor the platform preset supplies a value.
type FallbackConfig struct {
	APIKey  string `toml:"api_key,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// PlatformFallback converts the fallback section for platform resolution.
func (c *Config) PlatformFallback() platform.Fallback {
	return platform.Fallback{
		APIKey:  c.Fallback.APIKey,
		BaseURL: c.Fallback.BaseURL,
		Model:   c.Fallback.Model,
	}
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.output_dir": {
		get: func(c *Config) string { return c.Server.OutputDir },
		set: func(c *Config, v string) error { c.Server.OutputDir = v; return nil },
	},
	"server.upload_dir": {
		get: func(c *Config) string { return c.Server.UploadDir },
		set: func(c *Config, v string) error { c.Server.UploadDir = v; return nil },
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
	"translate.platform": {
		get: func(c *Config) string { return c.Translate.Platform },
		set: func(c *Config, v string) error {
			p, err := platform.MustLookup(v)
			if err != nil {
				return err
			}
			c.Translate.Platform = p.Name
			return nil
		},
	},
	"translate.target_lang": {
		get: func(c *Config) string { return c.Translate.TargetLang },
		set: func(c *Config, v string) error { c.Translate.TargetLang = v; return nil },
	},
	"translate.source_lang": {
		get: func(c *Config) string { return c.Translate.SourceLang },
		set: func(c *Config, v string) error { c.Translate.SourceLang = v; return nil },
	},
	"translate.encoding": {
		get: func(c *Config) string { return c.Translate.Encoding },
		set: func(c *Config, v string) error { c.Translate.Encoding = v; return nil },
	},
	"fallback.api_key": {
		get: func(c *Config) string { return c.Fallback.APIKey },
		set: func(c *Config, v string) error { c.Fallback.APIKey = v; return nil },
	},
	"fallback.base_url": {
		get: func(c *Config) string { return c.Fallback.BaseURL },
		set: func(c *Config, v string) error { c.Fallback.BaseURL = v; return nil },
	},
	"fallback.model": {
		get: func(c *Config) string { return c.Fallback.Model },
		set: func(c *Config, v string) error { c.Fallback.Model = v; return nil },
	},
}

// secretKeys are masked by callers that print configuration values.
var secretKeys = map[string]bool{
	"fallback.api_key": true,
}

// IsSecretKey reports whether the value of key should not be printed verbatim.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
