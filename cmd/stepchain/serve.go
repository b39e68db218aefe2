package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stepchain/stepchain/server"
)

// ServeCmd starts the trigger API server.
type ServeCmd struct {
	Port              int `help:"Port to listen on (overrides config)."`
	MaxConcurrentRuns int `name:"max-concurrent-runs" help:"Bound on in-flight pipeline runs (0 = unbounded)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	app, err := buildApp(cli)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(&server.Config{
		Server:   app.cfg.Server,
		Manager:  app.manager,
		Logger:   app.logger,
		Gatherer: app.metrics,
	})

	fmt.Printf("stepchain server ready\n")
	fmt.Printf("   Trigger:   POST http://%s:%d/pipelines/{name}/runs\n", app.cfg.Server.Host, app.cfg.Server.Port)
	fmt.Printf("   Status:    GET  http://%s:%d/runs/{run_id}\n", app.cfg.Server.Host, app.cfg.Server.Port)
	fmt.Printf("   Metrics:   GET  http://%s:%d/metrics\n", app.cfg.Server.Host, app.cfg.Server.Port)
	fmt.Printf("   Pipelines: %v\n", app.pipelines.Names())
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}
