package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/glossa/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read through viper.
const EnvPrefix = "GLOSSA"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the GLOSSA_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (GLOSSA_SERVER_LISTEN, GLOSSA_FALLBACK_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// ConfigFromViper builds a Config from the resolved viper values.
func ConfigFromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen:    v.GetString("server.listen"),
			OutputDir: v.GetString("server.output_dir"),
			UploadDir: v.GetString("server.upload_dir"),
		},
		Client: ClientConfig{
			RelayTarget: v.GetString("client.relay_target"),
		},
		Translate: TranslateConfig{
			Platform:   v.GetString("translate.platform"),
			TargetLang: v.GetString("translate.target_lang"),
			SourceLang: v.GetString("translate.source_lang"),
			Encoding:   v.GetString("translate.encoding"),
		},
		Fallback: FallbackConfig{
			APIKey:  v.GetString("fallback.api_key"),
			BaseURL: v.GetString("fallback.base_url"),
			Model:   v.GetString("fallback.model"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
//
// Every key gets a default, even an empty one, so AutomaticEnv can resolve
// it through Get.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.output_dir", d.Server.OutputDir)
	v.SetDefault("server.upload_dir", d.Server.UploadDir)

	// Client
	v.SetDefault("client.relay_target", d.Client.RelayTarget)

	// Translate
	v.SetDefault("translate.platform", d.Translate.Platform)
	v.SetDefault("translate.target_lang", d.Translate.TargetLang)
	v.SetDefault("translate.source_lang", d.Translate.SourceLang)
	v.SetDefault("translate.encoding", d.Translate.Encoding)

	// Fallback
	v.SetDefault("fallback.api_key", d.Fallback.APIKey)
	v.SetDefault("fallback.base_url", d.Fallback.BaseURL)
	v.SetDefault("fallback.model", d.Fallback.Model)
}
