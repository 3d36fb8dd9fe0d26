package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/examprep/internal/config"
	"github.com/conorfennell/examprep/internal/review"
	"github.com/conorfennell/examprep/internal/seed"
	"github.com/conorfennell/examprep/internal/storage"
	"github.com/conorfennell/examprep/internal/sync"
	"github.com/conorfennell/examprep/internal/web"
)

func main() {
	// 1. Define and parse command-line flags
	fs := config.NewFlagSet("examprep")
	addSource := fs.String("add-source", "", "Register a question source (local directory or git URL) and exit")
	syncOnly := fs.Bool("sync", false, "Sync all question sources and exit")
	seedOnly := fs.Bool("seed", false, "Register and sync the built-in Security+ deck, then exit")

	cfg, err := config.Load(fs, os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "examprep: %v\n", err)
		os.Exit(2)
	}
	logger := cfg.Logger(os.Stderr)

	// 2. Open the database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DB, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer := sync.New(db, cfg.ReposDir, logger)
	for _, p := range cfg.Sources {
		if _, _, err := syncer.AddSource(ctx, p); err != nil {
			logger.Error("failed to register configured source", "path", p, "error", err)
			os.Exit(1)
		}
	}

	// 3. One-shot actions
	switch {
	case *addSource != "":
		src, created, err := syncer.AddSource(ctx, *addSource)
		if err != nil {
			logger.Error("failed to add source", "path", *addSource, "error", err)
			os.Exit(1)
		}
		if !created {
			logger.Info("source already exists", "id", src.ID, "path", src.Path)
		}
		return
	case *seedOnly:
		if _, _, err := syncer.AddSource(ctx, seed.SourcePath); err != nil {
			logger.Error("failed to add built-in deck", "error", err)
			os.Exit(1)
		}
		runSync(ctx, logger, syncer)
		return
	case *syncOnly:
		runSync(ctx, logger, syncer)
		return
	}

	// 4. Serve
	scheduler, err := cfg.Scheduler()
	if err != nil {
		logger.Error("invalid scheduler configuration", "error", err)
		os.Exit(1)
	}
	reviews := review.NewService(db, db, db, scheduler, logger)
	server := web.NewServer(db, reviews, syncer, logger, web.Options{
		DueLimit:    cfg.DueLimit,
		CORSOrigins: cfg.CORSOrigins,
	})

	go func() {
		if _, err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("startup sync failed", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           server,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute, // POST /api/sync clones in the foreground
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}()

	logger.Info("starting server", "address", cfg.Address, "timezone", cfg.Timezone)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed to start", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
}

func runSync(ctx context.Context, logger *slog.Logger, syncer *sync.Syncer) {
	report, err := syncer.Run(ctx)
	if err != nil {
		logger.Error("sync failed", "error", err)
		os.Exit(1)
	}
	for _, p := range report.Problems {
		logger.Warn("sync problem", "error", p)
	}
}
