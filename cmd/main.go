package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/lidx/internal/services"
	"github.com/desertthunder/lidx/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	if p := os.Getenv("LIDX_CONFIG"); p != "" {
		configPath = p
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	shared.SetLogLevel(logger, shared.ParseLevel(config.Logging.Level))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		API:        services.NewAPIServiceFromConfig(config.Client, shared.WithLogger(logger, "component", "client")),
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "lidx",
		Usage:    "Watch Lidarr downloads & search MusicBrainz from the terminal",
		Version:  version,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		logger.Fatalf("application error: %v", err)
	}
}
