// Package translatecmder provides the translate command, which sends text or
// a text file to a running relay and prints the translation as it streams in.
package translatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/glossa/pkg/client"
	"github.com/papercomputeco/glossa/pkg/cliui"
	"github.com/papercomputeco/glossa/pkg/config"
	"github.com/papercomputeco/glossa/pkg/logger"
)

type TranslateCommander struct {
	relayTarget string
	platform    string
	targetLang  string
	sourceLang  string
	encoding    string
	model       string
	baseURL     string
	apiKey      string
	file        string
	output      string
	noStream    bool
	debug       bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	viper  *viper.Viper
	logger *slog.Logger
}

const translateLongDesc string = `Translate text through a running glossa relay.

Text is taken from the arguments, or from stdin when no arguments are
given. The translation is printed to stdout as it streams in; a status line
is printed to stderr when it is a terminal.

With --file, a .txt file is uploaded, decoded with --encoding and translated
as a whole. The translated file is downloaded to --output, or next to the
current directory under the name the relay gave it.

Examples:
  glossa translate -l French "Good morning"
  echo "Good morning" | glossa translate -l Japanese -p deepseek
  glossa translate -l English --file notes.txt --encoding gbk`

const translateShortDesc string = "Translate text through the relay"

var translateFlags = []string{
	config.FlagRelayTarget,
	config.FlagPlatform,
	config.FlagTargetLang,
	config.FlagSourceLang,
	config.FlagEncoding,
}

func NewTranslateCmd() *cobra.Command {
	cmder := &TranslateCommander{}

	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: translateShortDesc,
		Long:  translateLongDesc,

		// Relay and upstream failures are not usage errors.
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, translateFlags)
			cfg := config.ConfigFromViper(cmder.viper)
			cmder.relayTarget = cfg.Client.RelayTarget
			cmder.platform = cfg.Translate.Platform
			cmder.targetLang = cfg.Translate.TargetLang
			cmder.sourceLang = cfg.Translate.SourceLang
			cmder.encoding = cfg.Translate.Encoding
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagPlatform, &cmder.platform)
	config.AddStringFlag(cmd, config.Flags, config.FlagTargetLang, &cmder.targetLang)
	config.AddStringFlag(cmd, config.Flags, config.FlagSourceLang, &cmder.sourceLang)
	config.AddStringFlag(cmd, config.Flags, config.FlagEncoding, &cmder.encoding)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Translate a .txt file instead of text")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Where to save the translated file (with --file)")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the whole translation instead of streaming it")

	return cmd
}

func (c *TranslateCommander) run(ctx context.Context, args []string) error {
	if c.targetLang == "" {
		return errors.New("target language is required: pass --to or set translate.target_lang")
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)

	cl := client.New(c.relayTarget, client.WithLogger(c.logger))
	req := client.Request{
		Platform:   c.platform,
		APIKey:     c.apiKey,
		BaseURL:    c.baseURL,
		Model:      c.model,
		TargetLang: c.targetLang,
		SourceLang: c.sourceLang,
		NoStream:   c.noStream,
	}

	if c.file != "" {
		return c.translateFile(ctx, cl, req)
	}

	text, err := c.readText(args)
	if err != nil {
		return err
	}
	req.Text = text

	return c.translateText(ctx, cl, req)
}

func (c *TranslateCommander) translateText(ctx context.Context, cl *client.Client, req client.Request) error {
	var wrote bool
	res, err := cl.Translate(ctx, req, func(chunk string) {
		wrote = true
		fmt.Fprint(c.out, chunk)
	})
	if err != nil {
		if wrote {
			fmt.Fprintln(c.out)
		}
		c.status(err.Error(), err)
		return err
	}

	if !wrote && res.Text != "" {
		fmt.Fprint(c.out, res.Text)
		wrote = true
	}
	if wrote {
		fmt.Fprintln(c.out)
	}

	c.status(res.Status(), nil)
	return nil
}

func (c *TranslateCommander) translateFile(ctx context.Context, cl *client.Client, req client.Request) error {
	f, err := os.Open(c.file)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	req.File = f
	req.FileName = filepath.Base(c.file)
	req.Encoding = c.encoding

	var res *client.Result
	err = c.step("translating "+req.FileName, func() error {
		var err error
		res, err = cl.Translate(ctx, req, nil)
		return err
	})
	if err != nil {
		return err
	}

	if res.FileURL == "" {
		return errors.New("relay did not return a translated file URL")
	}

	dest := c.output
	if dest == "" {
		dest = path.Base(res.FileURL)
	}

	err = c.step("downloading "+dest, func() error {
		return download(ctx, cl, res.FileURL, dest)
	})
	if err != nil {
		return err
	}

	if !c.interactive() {
		fmt.Fprintln(c.out, dest)
	}
	return nil
}

// download writes the file at fileURL to a temporary file next to dest and
// renames it into place, so a failed download never leaves dest behind.
func download(ctx context.Context, cl *client.Client, fileURL, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := cl.Download(ctx, fileURL, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("saving output file: %w", err)
	}
	return nil
}

// readText joins the arguments, or reads all of stdin when there are none.
func (c *TranslateCommander) readText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if f, ok := c.in.(*os.File); ok && cliui.IsTerminal(f) {
		return "", errors.New("no text to translate: pass it as arguments or pipe it on stdin")
	}

	b, err := io.ReadAll(c.in)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}

	text := strings.TrimRight(string(b), "\r\n")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text to translate")
	}
	return text, nil
}

// interactive reports whether status output goes to a terminal.
func (c *TranslateCommander) interactive() bool {
	f, ok := c.errOut.(*os.File)
	return ok && cliui.IsTerminal(f)
}

func (c *TranslateCommander) status(msg string, err error) {
	if c.interactive() {
		cliui.Status(c.errOut, msg, err)
	}
}

func (c *TranslateCommander) step(msg string, fn func() error) error {
	if c.interactive() {
		return cliui.Step(c.errOut, msg, fn)
	}
	return fn()
}
