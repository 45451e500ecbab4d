// Package platformscmder provides the platforms command, which lists the
// upstream presets glossa knows about.
package platformscmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/glossa/pkg/cliui"
	"github.com/papercomputeco/glossa/pkg/platform"
)

const platformsLongDesc string = `List the upstream platform presets.

Each preset names the environment variables the relay reads for it and the
default base URL and model used when a request does not supply them.

Examples:
  glossa platforms
  glossa platforms --json`

const platformsShortDesc string = "List upstream platform presets"

func NewPlatformsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "platforms",
		Short: platformsShortDesc,
		Long:  platformsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(platform.Presets())
			}
			printTable(cmd.OutOrStdout(), platform.Presets())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print presets as JSON")

	return cmd
}

func printTable(w io.Writer, presets []platform.Preset) {
	// Find the longest name for alignment.
	maxLen := 0
	for _, p := range presets {
		maxLen = max(maxLen, len(p.Name))
	}

	for _, p := range presets {
		name := fmt.Sprintf("%-*s", maxLen, p.Name)
		if p.Name == platform.Custom {
			fmt.Fprintf(w, "%s  %s\n", cliui.KeyStyle.Render(name),
				cliui.DimStyle.Render("set base URL and model explicitly or in [fallback]"))
			continue
		}

		key := p.APIKeyEnv()
		if p.KeyOptional {
			key += " (optional)"
		}

		fmt.Fprintf(w, "%s  %s  %s\n", cliui.KeyStyle.Render(name),
			cliui.ValueStyle.Render(p.DefaultBaseURL),
			cliui.DimStyle.Render(p.DefaultModel+", "+key),
		)
	}
}
