package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	// Flags without one are per-invocation only and never bound to viper.
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags
// to avoid typos or drift from one command to another.
const (
	FlagListen      = "listen"
	FlagOutputDir   = "output-dir"
	FlagUploadDir   = "upload-dir"
	FlagRelayTarget = "relay"
	FlagPlatform    = "platform"
	FlagTargetLang  = "target-lang"
	FlagSourceLang  = "source-lang"
	FlagEncoding    = "encoding"
	FlagModel       = "model"
	FlagBaseURL     = "base-url"
	FlagAPIKey      = "api-key"
)

// Flags is the registry shared by every glossa command.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		ViperKey:    "server.listen",
		Description: "Address for the relay server to listen on",
	},
	FlagOutputDir: {
		Name:        "output-dir",
		ViperKey:    "server.output_dir",
		Description: "Directory for translated files",
	},
	FlagUploadDir: {
		Name:        "upload-dir",
		ViperKey:    "server.upload_dir",
		Description: "Directory for uploads in flight",
	},
	FlagRelayTarget: {
		Name:        "relay",
		ViperKey:    "client.relay_target",
		Description: "Relay server URL",
	},
	FlagPlatform: {
		Name:        "platform",
		Shorthand:   "p",
		ViperKey:    "translate.platform",
		Description: "Upstream platform preset",
	},
	FlagTargetLang: {
		Name:        "to",
		Shorthand:   "l",
		ViperKey:    "translate.target_lang",
		Description: "Target language",
	},
	FlagSourceLang: {
		Name:        "from",
		Shorthand:   "s",
		ViperKey:    "translate.source_lang",
		Description: "Source language (detected by the model when empty)",
	},
	FlagEncoding: {
		Name:        "encoding",
		Shorthand:   "e",
		ViperKey:    "translate.encoding",
		Description: "Character encoding of --file",
	},
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		Description: "Upstream model",
	},
	FlagBaseURL: {
		Name:        "base-url",
		Description: "Upstream OpenAI-compatible base URL",
	},
	FlagAPIKey: {
		Name:        "api-key",
		Description: "Upstream API key",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		if def.ViperKey == "" {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	if viperKey == "" {
		return ""
	}

	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
