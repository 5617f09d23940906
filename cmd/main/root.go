package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"carpics/fetcher/internal/config"
	"carpics/fetcher/internal/container"
	"carpics/fetcher/internal/domain"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool

	flagURL       string
	flagPrefix    string
	flagExteriors []string
	flagInterior  bool
	flagCustomize bool
)

var rootCmd = &cobra.Command{
	Use:   "carpics",
	Short: "Download configurator images for every camera angle",
	Long: `carpics - vendor configurator image downloader

Takes a templated image URL copied from the vendor query page, swaps in the
selected view, exterior colour and camera angle, and saves one PNG per angle.

Requests come from the 'requests' list in config.yaml, or from --url/--prefix.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	for _, cmd := range []*cobra.Command{planCmd, fetchCmd, enqueueCmd} {
		cmd.Flags().StringVar(&flagURL, "url", "", "Template URL")
		cmd.Flags().StringVar(&flagPrefix, "prefix", "", "Output filename prefix")
		cmd.Flags().StringSliceVar(&flagExteriors, "exterior", nil, "Exterior code (repeatable, requires --customize)")
		cmd.Flags().BoolVar(&flagInterior, "interior", false, "Download interior angles instead of exterior")
		cmd.Flags().BoolVar(&flagCustomize, "customize", false, "Replace the template colour with --exterior codes")
	}

	rootCmd.AddCommand(codesCmd, planCmd, fetchCmd, enqueueCmd, workCmd, historyCmd)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("carpics {{.Version}}\n")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	log.Debug("Configuration loaded successfully")
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// withContainer loads config, builds the container and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withContainer(fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer app.Close()

	return fn(ctx, app)
}

// requests returns the ad-hoc flag request when --url is set, otherwise the
// configured requests. Selections are padded the way the form pads unused
// colour selectors.
func requests(cfg *config.Config) []domain.DownloadRequest {
	var reqs []domain.DownloadRequest
	if flagURL != "" {
		reqs = []domain.DownloadRequest{{
			URL:            flagURL,
			FilenamePrefix: flagPrefix,
			Exteriors:      flagExteriors,
			Interior:       flagInterior,
			Customize:      flagCustomize,
		}}
	} else {
		reqs = cfg.Requests
	}

	out := make([]domain.DownloadRequest, len(reqs))
	for i, r := range reqs {
		out[i] = normalizeSelections(r, cfg.Exteriors.Selectors)
	}
	return out
}

func normalizeSelections(r domain.DownloadRequest, selectors int) domain.DownloadRequest {
	if !r.Customize {
		r.Exteriors = []string{""}
		return r
	}
	sel := make([]string, 0, max(selectors, len(r.Exteriors)))
	sel = append(sel, r.Exteriors...)
	for len(sel) < selectors {
		sel = append(sel, "")
	}
	r.Exteriors = sel
	return r
}
