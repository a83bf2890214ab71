// app.go
package main

import (
	"fmt"
	"log/slog"

	"github.com/gewnthar/agendawatch/config"
	"github.com/gewnthar/agendawatch/database"
	"github.com/gewnthar/agendawatch/extractor"
	"github.com/gewnthar/agendawatch/logger"
	"github.com/gewnthar/agendawatch/notifier"
	"github.com/gewnthar/agendawatch/scraper"
	"github.com/gewnthar/agendawatch/services"
	"github.com/gewnthar/agendawatch/summarizer"
)

// app holds the configuration, logger and store shared by every command.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store *database.Store
}

func newApp() (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}

	store, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// newMonitor wires the pipeline. A missing extractor backend or an unknown
// summarizer provider is a startup error.
func (a *app) newMonitor() (*services.Monitor, error) {
	client := scraper.NewClient(a.cfg.Listing, a.cfg.HTTP, a.log)

	ext, err := extractor.New(a.cfg.Extractor, a.log)
	if err != nil {
		return nil, err
	}
	summ, err := summarizer.New(a.cfg.Summarizer, a.log)
	if err != nil {
		return nil, err
	}

	deps := services.MonitorDeps{
		Listing:    client,
		Resolver:   client,
		Documents:  client,
		Extractor:  ext,
		Summarizer: summ,
		Store:      a.store,
	}
	if discord := notifier.NewDiscord(a.cfg.Notifier, a.log); discord != nil {
		deps.Notifier = discord
	} else {
		a.log.Warn("no Discord webhook configured; notifications disabled")
	}

	return services.NewMonitor(deps, services.MonitorOptions{
		ListingURL:          a.cfg.Listing.URL,
		Pacing:              a.cfg.Pipeline.Pacing,
		NotifyRetryWindow:   a.cfg.Pipeline.NotifyRetryWindow,
		AgendaRefreshWindow: a.cfg.Pipeline.AgendaRefreshWindow,
	}, a.log)
}
