package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/jukebox/internal/metrics"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/streaming"
	"github.com/desertthunder/jukebox/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve wires storage, the job store, the ingest engine and metrics into the HTTP server
// and runs it until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := r.openStorage()
	if err != nil {
		return err
	}

	jobs, closeDB, err := r.openJobs()
	if err != nil {
		return err
	}
	defer closeDB()

	if n, err := jobs.MarkInterrupted("interrupted by server restart"); err != nil {
		r.logger.Warn("failed to mark interrupted jobs", "error", err)
	} else if n > 0 {
		r.logger.Info("marked interrupted jobs failed", "count", n)
	}

	m := metrics.New()
	engine := tasks.NewIngestEngine(tasks.IngestOpts{
		Provider: r.newProvider(),
		Storage:  dir,
		Jobs:     jobs,
		Recorder: m,
		Logger:   r.logger,
	})

	cfg := r.config.Server
	api := server.NewAPI(server.APIOpts{
		Catalog:     dir,
		Ingest:      engine,
		Jobs:        jobs,
		Stream:      streaming.NewResponder(dir, m, r.logger),
		MaxUploadMB: cfg.MaxUploadMB,
		Logger:      r.logger,
	})

	srv := server.New(server.ServerOpts{
		Config:     cfg,
		Handler:    server.NewHandler(server.HandlerOpts{API: api, Metrics: m, Config: cfg, Logger: r.logger}),
		Background: engine,
		Logger:     r.logger,
	})

	r.logger.Info("serving music", "dir", dir.Root(), "db", r.config.Database.Path, "addr", cfg.Addr())

	if cmd.Bool("open") {
		host := cfg.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "localhost"
		}
		url := fmt.Sprintf("http://%s:%d/api/songs", host, cfg.Port)
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "url", url, "error", err)
		}
	}

	return srv.Run(ctx)
}
