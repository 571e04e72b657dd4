package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitchen_demo_sync/internal/app"
	"kitchen_demo_sync/internal/processing"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	setupEnvironment()

	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("Invalid command line")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{CachePath: f.cache, DBPath: f.db, RosterPath: f.roster})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	if f.once {
		if _, err := a.Syncer.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Sync failed")
			a.Close()
			os.Exit(1)
		}
		return
	}

	srv := &http.Server{
		Addr:              f.addr,
		Handler:           a.Server,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", f.addr).Msg("Dashboard API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	interval := app.SyncInterval()
	log.Info().Dur("interval", interval).Msg("Starting kitchen demo sync. Running immediately and then on every tick...")
	runSyncLoop(ctx, a.Syncer, interval)

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}
}

// runSyncLoop syncs once right away and then on every tick until ctx ends.
// Failed cycles are already logged and recorded on the board.
func runSyncLoop(ctx context.Context, syncer *processing.Syncer, interval time.Duration) {
	runCycle(ctx, syncer)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCycle(ctx, syncer)
		}
	}
}

func runCycle(ctx context.Context, syncer *processing.Syncer) {
	if _, err := syncer.RunOnce(ctx); errors.Is(err, processing.ErrSyncInProgress) {
		log.Debug().Msg("Skipping tick, manual sync still running")
	}
}
