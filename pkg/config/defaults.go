package config

import "github.com/papercomputeco/glossa/pkg/platform"

const (
	defaultListen    = ":5000"
	defaultOutputDir = "translated_output"
	defaultUploadDir = "uploads"

	defaultRelayTarget = "http://localhost:5000"

	defaultPlatform = platform.Custom
	defaultEncoding = "utf-8"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:    defaultListen,
			OutputDir: defaultOutputDir,
			UploadDir: defaultUploadDir,
		},
		Client: ClientConfig{
			RelayTarget: defaultRelayTarget,
		},
		Translate: TranslateConfig{
			Platform: defaultPlatform,
			Encoding: defaultEncoding,
		},
	}
}
