// Package initcmder provides the init command for initializing a local
// .glossa directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/glossa/pkg/config"
)

const (
	dirName = ".glossa"

	remoteTimeout = 10 * time.Second
	maxRemoteSize = 1 << 20
)

const initLongDesc string = `Initialize a new .glossa/ directory in the current working directory.

Creates a local .glossa/ directory holding config.toml. It takes precedence
over the default ~/.glossa/ directory, which is useful for keeping separate
settings per project.

--preset seeds config.toml from a platform preset (see "glossa platforms")
or downloads a config.toml from an http(s) URL, replacing any existing file.

Examples:
  glossa init
  glossa init --preset deepseek
  glossa init --preset https://example.com/glossa/config.toml`

const initShortDesc string = "Initialize a local .glossa/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Platform preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .glossa directory: %w", err)
		}
	}

	cfg, err := presetConfig(ctx, preset)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, config.FileName)
	if preset == "" {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(w, "Already initialized: %s\n", dir)
			return nil
		}
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	if existed {
		fmt.Fprintf(w, "Updated %s\n", path)
	} else {
		fmt.Fprintf(w, "Initialized .glossa directory: %s\n", dir)
	}
	return nil
}

// presetConfig returns the config to write for preset: defaults when empty,
// a fetched file for URLs, otherwise the named platform preset.
func presetConfig(ctx context.Context, preset string) (*config.Config, error) {
	switch {
	case preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(preset, "http://"), strings.HasPrefix(preset, "https://"):
		return fetchRemoteConfig(ctx, preset)
	default:
		return config.PresetConfig(preset)
	}
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize+1))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	if len(data) > maxRemoteSize {
		return nil, errors.New("fetching remote config: file too large")
	}

	return config.ParseConfigTOML(data)
}
