// Package configcmder provides the config command for managing persistent
// glossa configuration stored in the .glossa/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/glossa/pkg/config"
	"github.com/papercomputeco/glossa/pkg/platform"
)

const configLongDesc string = `Manage persistent glossa configuration.

Configuration is stored as config.toml in the .glossa/ directory and provides
default values for command flags. CLI flags and GLOSSA_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.output_dir, server.upload_dir,
  client.relay_target,
  translate.platform, translate.target_lang, translate.source_lang,
  translate.encoding,
  fallback.api_key, fallback.base_url, fallback.model

Use subcommands to get, set, or list configuration values:
  glossa config set <key> <value>    Set a configuration value
  glossa config get <key>            Get a configuration value
  glossa config list                 List all configuration values

Examples:
  glossa config set translate.platform deepseek
  glossa config set translate.target_lang French
  glossa config get fallback.model
  glossa config list`

const configShortDesc string = "Manage persistent glossa configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// displayValue masks secret values.
func displayValue(key, value string) string {
	if value == "" || !config.IsSecretKey(key) {
		return value
	}
	return platform.Settings{APIKey: value}.MaskedKey()
}
