// Package glossacmder
package glossacmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/glossa/cmd/glossa/config"
	initcmder "github.com/papercomputeco/glossa/cmd/glossa/init"
	platformscmder "github.com/papercomputeco/glossa/cmd/glossa/platforms"
	servecmder "github.com/papercomputeco/glossa/cmd/glossa/serve"
	translatecmder "github.com/papercomputeco/glossa/cmd/glossa/translate"
	versioncmder "github.com/papercomputeco/glossa/cmd/version"
)

const glossaLongDesc string = `Glossa translates text with any OpenAI-compatible chat API and streams
the result as it is generated.

Run the relay server, then translate through it:
  glossa serve                        Run the relay server
  glossa translate -l French "Hello"  Translate text through the relay
  glossa platforms                    List upstream platform presets`

const glossaShortDesc string = "Glossa - streaming LLM translation"

func NewGlossaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "glossa",
		Short:        glossaShortDesc,
		Long:         glossaLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .glossa/ directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(translatecmder.NewTranslateCmd())
	cmd.AddCommand(platformscmder.NewPlatformsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
