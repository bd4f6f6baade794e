package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tazhate/icalsync/config"
	"github.com/tazhate/icalsync/internal/clients/google"
	"github.com/tazhate/icalsync/internal/clients/icloud"
	"github.com/tazhate/icalsync/internal/logger"
	"github.com/tazhate/icalsync/internal/scheduler"
	"github.com/tazhate/icalsync/internal/state"
	"github.com/tazhate/icalsync/internal/storage"
	"github.com/tazhate/icalsync/internal/syncer"
)

// app wires the collaborators every command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	manager *syncer.Manager
	google  *google.Client
	history *storage.History
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		return nil, fmt.Errorf("load sync settings: %w", err)
	}

	store, err := state.Open(cfg.StatePath())
	if err != nil {
		return nil, err
	}

	history, err := storage.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	icloudClient := icloud.NewClient(cfg.ICloud.URL, cfg.ICloud.Username, cfg.ICloud.Password, log)
	googleClient := google.NewClient(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.TokenFile, log)

	manager := syncer.NewManager(syncer.Deps{
		SettingsPath: cfg.SettingsPath(),
		Settings:     settings,
		Store:        store,
		Source:       icloudClient,
		Remote:       googleClient,
		Scheduler:    scheduler.New(log),
		History:      history,
		Location:     loc,
		Logger:       log,
	})

	return &app{
		cfg:     cfg,
		log:     log,
		manager: manager,
		google:  googleClient,
		history: history,
	}, nil
}

func (a *app) close() {
	if err := a.history.Close(); err != nil {
		a.log.Warn("close history", zap.Error(err))
	}
	_ = a.log.Sync()
}
