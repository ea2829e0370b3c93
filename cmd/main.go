package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/repositories"
	"github.com/desertthunder/segx/internal/services"
	"github.com/desertthunder/segx/internal/shared"
	"github.com/urfave/cli/v3"
)

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "segx",
		Usage:    "Upload brain MRI studies for tumor segmentation and browse the results",
		Version:  "0.1.0",
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	if os.Getenv("SEGX_DEBUG") != "" {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	configPath := "config.toml"
	if p := os.Getenv("SEGX_CONFIG"); p != "" {
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

	opts := RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		API:        services.NewAPIService(config.API.BaseURL, &http.Client{Timeout: config.API.Timeout()}),
		Logger:     logger,
	}

	if identity, err := services.NewIdentityService(config.Auth); err == nil {
		opts.Identity = identity
	} else {
		logger.Debug("identity provider not configured", "error", err)
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		logger.Warn("local database unavailable, sessions and report cache disabled", "error", err)
	} else {
		defer db.Close()

		sessions, err := services.NewSessionManager(
			repositories.NewSessionRepository(db),
			repositories.NewRememberedEmailRepository(db),
			logger,
		)
		if err != nil {
			logger.Warn("failed to load session", "error", err)
		} else {
			opts.Sessions = sessions
		}
		opts.Reports = repositories.NewReportRepository(db)
	}

	app := newApp(NewRunner(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			return
		}
		stop()
		if db != nil {
			db.Close()
		}
		logger.Fatalf("application error: %v", err)
	}
}
