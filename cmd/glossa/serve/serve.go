// Package servecmder provides the serve command that runs the glossa relay.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/glossa/pkg/cliui"
	"github.com/papercomputeco/glossa/pkg/config"
	"github.com/papercomputeco/glossa/pkg/dotdir"
	"github.com/papercomputeco/glossa/pkg/logger"
	"github.com/papercomputeco/glossa/relay"
)

type ServeCommander struct {
	listen          string
	outputDir       string
	uploadDir       string
	logFile         string
	jsonLogs        bool
	captureUpstream bool
	debug           bool
	configDir       string

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the glossa relay server.

The relay accepts translation requests on POST /translate_api, calls the
configured upstream chat completions API and streams the translation back
as a normalized text/event-stream.

Upstream settings are resolved per request: form fields first, then
<PLATFORM>_API_KEY, <PLATFORM>_BASE_URL and <PLATFORM>_MODEL environment
variables, then the platform preset, then the [fallback] section of
config.toml. The fallback section is reloaded whenever config.toml changes.

Examples:
  glossa serve
  glossa serve --listen :8000 --output-dir ./out
  glossa serve --log-file relay.log`

const serveShortDesc string = "Run the glossa relay server"

var serveFlags = []string{
	config.FlagListen,
	config.FlagOutputDir,
	config.FlagUploadDir,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, serveFlags)
			cfg := config.ConfigFromViper(cmder.viper)
			cmder.listen = cfg.Server.Listen
			cmder.outputDir = cfg.Server.OutputDir
			cmder.uploadDir = cfg.Server.UploadDir
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagOutputDir, &cmder.outputDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagUploadDir, &cmder.uploadDir)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write JSON logs to stdout instead of pretty output")
	cmd.Flags().BoolVar(&cmder.captureUpstream, "capture-upstream", false, "Log raw upstream stream lines (requires --debug)")

	return cmd
}

func (c *ServeCommander) run() error {
	var closeLog func() error
	c.logger, closeLog = c.newLogger()
	defer closeLog()

	cfg := config.ConfigFromViper(c.viper)

	r, err := relay.New(relay.Config{
		ListenAddr:      c.listen,
		OutputDir:       c.outputDir,
		UploadDir:       c.uploadDir,
		Fallback:        cfg.PlatformFallback(),
		CaptureUpstream: c.captureUpstream,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath, err := c.configPath()
	if err != nil {
		c.logger.Warn("config reload disabled", "error", err)
	} else {
		w := &configWatcher{
			path:   configPath,
			logger: c.logger,
			load: func() (*config.Config, error) {
				v, err := config.InitViper(c.configDir)
				if err != nil {
					return nil, err
				}
				return config.ConfigFromViper(v), nil
			},
			apply: func(cfg *config.Config) { r.SetFallback(cfg.PlatformFallback()) },
		}
		go func() {
			if err := w.Watch(ctx); err != nil {
				c.logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	if cliui.IsTerminal(os.Stderr) && !c.jsonLogs {
		fmt.Fprintf(os.Stderr, "\n  %s relay listening on %s\n\n",
			cliui.SuccessMark,
			cliui.ValueStyle.Render(c.listen),
		)
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// newLogger builds the console logger and, with --log-file, fans records out
// to a JSON file logger as well. The returned func closes the file.
func (c *ServeCommander) newLogger() (*slog.Logger, func() error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.jsonLogs),
		logger.WithJSON(c.jsonLogs),
	)

	if c.logFile == "" {
		return console, func() error { return nil }
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		console.Warn("could not open log file, logging to console only",
			"path", c.logFile,
			"error", err,
		)
		return console, func() error { return nil }
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), f.Close
}

func (c *ServeCommander) configPath() (string, error) {
	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", errors.New("no config directory")
	}
	return filepath.Join(dir, config.FileName), nil
}
