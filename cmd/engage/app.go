package main

import (
	"fmt"

	"github.com/neuraadapt/engage/internal/analysis"
	"github.com/neuraadapt/engage/internal/config"
	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/metrics"
	"github.com/neuraadapt/engage/internal/playback"
	"github.com/neuraadapt/engage/internal/report"
	"github.com/neuraadapt/engage/internal/session"
	"github.com/neuraadapt/engage/internal/storage"
	"github.com/neuraadapt/engage/internal/storage/bolt"
	"github.com/neuraadapt/engage/internal/storage/redis"
	"github.com/neuraadapt/engage/internal/systemd"
	"github.com/rs/zerolog"
)

// app wires the session collaborators from configuration.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	playback *playback.Server
	metrics  *metrics.Server
	store    storage.Store
	sessions storage.SessionStore
	client   *analysis.Client
}

// loadApp loads configuration, sets up logging and starts the local servers.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	a := &app{cfg: cfg, logger: logger}

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return nil, err
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store != nil {
		a.store = store
		cached, err := storage.NewCachedSessions(store.Sessions(), cfg.Storage.CacheSize)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.sessions = cached
		logger.Debug().Str("type", cfg.Storage.Type).Msg("Session history enabled")
	}

	a.playback = playback.NewServer(playback.Config{
		BindAddress: cfg.Playback.BindAddress,
		Port:        cfg.Playback.Port,
	}, logger)
	if sdListeners.Playback != nil {
		err = a.playback.Serve(sdListeners.Playback)
	} else {
		err = a.playback.Start()
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start playback server: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewServer(cfg.Metrics.Address, logger)
		if sdListeners.Metrics != nil {
			err = a.metrics.Serve(sdListeners.Metrics)
		} else {
			err = a.metrics.Start()
		}
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	a.client = analysis.NewClient(analysis.Config{
		URL:     cfg.Analysis.AnalysisURL(),
		Field:   cfg.Analysis.Field,
		Timeout: config.ParseDuration(cfg.Analysis.Timeout, 0),
	}, logger)

	return a, nil
}

// newSession builds a machine with fresh resources. The caller starts and
// closes it.
func (a *app) newSession(onChange func(session.Snapshot)) *session.Machine {
	var camera media.Camera
	if a.cfg.Camera.Enabled {
		camera = media.DeviceCamera{Path: a.cfg.Camera.Device}
	}

	resources := media.NewResources(a.playback, camera, a.logger)
	intake := media.NewIntake(media.IntakeConfig{
		Resources: resources,
		Player:    media.NewCommandPlayer(a.cfg.Playback.PlayerCommand, a.logger),
		Preview:   media.NewLogPreview(a.logger),
		Autoplay:  a.cfg.Playback.Autoplay,
	}, a.logger)

	return session.New(session.Config{
		Intake:   intake,
		Analyzer: a.client,
		Sessions: a.sessions,
		OnChange: onChange,
	}, a.logger)
}

func (a *app) presentOptions() report.Options {
	return report.Options{HeatmapCap: a.cfg.Report.HeatmapCap}
}

// Close stops the servers and closes storage.
func (a *app) Close() {
	if a.metrics != nil {
		if err := a.metrics.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}
	if a.playback != nil {
		if err := a.playback.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Error stopping playback server")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close storage")
		}
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	case "bolt":
		return bolt.Open(cfg.Bolt.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
