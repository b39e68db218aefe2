package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/stepchain/stepchain/catalog"
	"github.com/stepchain/stepchain/collaborator"
	"github.com/stepchain/stepchain/config"
	"github.com/stepchain/stepchain/notify"
	"github.com/stepchain/stepchain/pipeline"
	"github.com/stepchain/stepchain/runstore"
	"github.com/stepchain/stepchain/server"
)

// app wires the service components from configuration
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *prometheus.Registry
	store     runstore.Store
	engine    *pipeline.Engine
	pipelines *pipeline.Registry
	manager   *server.RunManager

	logCleanup func()
}

// buildApp assembles the service from configuration
func buildApp(cli *CLI) (*app, error) {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return nil, err
	}

	// Serve flags override the server section
	if cli.Serve.Port != 0 {
		cfg.Server.Port = cli.Serve.Port
	}
	if cli.Serve.MaxConcurrentRuns != 0 {
		cfg.Server.MaxConcurrentRuns = cli.Serve.MaxConcurrentRuns
	}

	logger, logCleanup, err := initLogger(cli, cfg)
	if err != nil {
		return nil, err
	}

	collaborators, err := collaborator.BuildRegistry(cfg.Collaborators)
	if err != nil {
		logCleanup()
		return nil, err
	}

	notifiers, err := notify.BuildRegistry(cfg.Notifiers, logger)
	if err != nil {
		logCleanup()
		return nil, err
	}
	// The default log channel is always available
	if _, ok := notifiers.Get(catalog.DefaultNotifier); !ok {
		if err := notifiers.RegisterNotifier(notify.NewLogNotifier(catalog.DefaultNotifier, logger)); err != nil {
			logCleanup()
			return nil, err
		}
	}

	store, err := runstore.Open(&cfg.Storage)
	if err != nil {
		logCleanup()
		return nil, err
	}

	metricsRegistry := prometheus.NewRegistry()

	engine := pipeline.NewEngine(&pipeline.EngineConfig{
		Collaborators: collaborators,
		Notifiers:     notifiers,
		Store:         store,
		Metrics:       pipeline.NewMetrics(metricsRegistry),
		Logger:        logger,
		Tracer:        otel.Tracer("stepchain"),
		Environment:   cfg.Global.Environment,
	})

	pipelines, err := catalog.Definitions(cfg)
	if err != nil {
		store.Close()
		logCleanup()
		return nil, err
	}

	manager := server.NewRunManager(&server.RunManagerConfig{
		Engine:            engine,
		Pipelines:         pipelines,
		Policies:          cfg.Pipelines,
		Store:             store,
		Logger:            logger,
		MaxConcurrentRuns: cfg.Server.MaxConcurrentRuns,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    metricsRegistry,
		store:      store,
		engine:     engine,
		pipelines:  pipelines,
		manager:    manager,
		logCleanup: logCleanup,
	}, nil
}

// Close releases the app's resources
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}
