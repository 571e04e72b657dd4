package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"kitchen_demo_sync/internal/api"
	"kitchen_demo_sync/internal/cache"
	"kitchen_demo_sync/internal/config"
	"kitchen_demo_sync/internal/feed"
	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/notifications"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/processing"
	"kitchen_demo_sync/internal/providers"
	"kitchen_demo_sync/internal/resolution"
	"kitchen_demo_sync/internal/schedule"
	"kitchen_demo_sync/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Options are the command-line settings; everything else comes from the
// environment.
type Options struct {
	CachePath  string
	DBPath     string
	RosterPath string
}

// App owns the long-lived components of the service.
type App struct {
	Board    *schedule.Board
	Syncer   *processing.Syncer
	Server   *api.Server
	Notifier *notifications.Client

	store   *overrides.Resilient
	sqlite  *overrides.SQLiteStore
	cache   *cache.File
	cacheMu sync.Mutex
}

// New wires the board, feed sources, override store, cache and notifier.
func New(ctx context.Context, opts Options) (*App, error) {
	roster, err := resolution.LoadRoster(opts.RosterPath)
	if err != nil {
		return nil, err
	}

	a := &App{cache: cache.NewFile(opts.CachePath)}

	var store overrides.Store
	memory := overrides.NewMemoryStore()
	if opts.DBPath != "" {
		a.sqlite, err = overrides.OpenSQLite(opts.DBPath)
		if err != nil {
			return nil, err
		}
		store = a.sqlite
		log.Info().Str("path", opts.DBPath).Msg("Using SQLite override store")
	} else {
		store = memory
		log.Warn().Msg("No override database configured, operator edits live in memory and the cache only")
	}
	a.store = overrides.NewResilient(store, config.DefaultResilienceConfig.OverrideStore)

	sheetsClient := InitializeSheetsClient(ctx)
	var mirror schedule.Mirror
	if cfg, ok := sheets.ConfigFromEnv(); ok && sheetsClient != nil && GetEnvWithDefault("SHEET_WRITEBACK", "false") == "true" {
		mirror = sheets.NewAssignmentWriter(sheetsClient, cfg, config.DefaultResilienceConfig.SheetWrite)
		log.Info().Str("sheet", cfg.SheetName()).Msg("Assignment write-back enabled")
	}

	a.Board = schedule.NewBoard(roster, schedule.Options{
		Store:    a.store,
		Mirror:   mirror,
		OnChange: a.saveCache,
	})
	a.restore(memory)

	a.Notifier = InitializeNotificationClient()

	httpClient := &http.Client{Timeout: config.DefaultResilienceConfig.FeedFetch.Timeout}
	sources := providers.LoadSources(httpClient, sheetsClient)
	if len(sources) == 0 {
		log.Warn().Msg("No feed sources configured, serving cached or empty board only")
	}

	a.Syncer = processing.NewSyncer(processing.SyncerOptions{
		Fetcher:   providers.Policy{Sources: sources, Retry: config.DefaultResilienceConfig.FeedFetch},
		Parser:    feed.NewParser(roster, nil),
		Overrides: a.store,
		Board:     a.Board,
		Notifier:  a.Notifier,
		Timeout:   SyncTimeout(),
	})
	a.Server = api.NewServer(a.Board, a.Syncer)
	return a, nil
}

// restore seeds the board from the cache file. With no database configured
// the cached operator edits also seed the in-memory override store.
func (a *App) restore(memory *overrides.MemoryStore) {
	snap, err := a.cache.Load()
	switch {
	case errors.Is(err, cache.ErrCacheNotFound):
		log.Info().Msg("No cached schedule found, starting empty")
		return
	case err != nil:
		log.Warn().Err(err).Str("path", a.cache.Path()).Msg("Ignoring unusable cache")
		return
	}

	if a.sqlite == nil && len(snap.UserUpdates) > 0 {
		all := make([]overrides.Override, 0, len(snap.UserUpdates))
		for _, o := range snap.UserUpdates {
			all = append(all, o)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
		memory.Seed(all)
	}

	a.Board.Restore(snap.DemoRequests, snap.Tasks, snap.LastUpdated, model.SourceCached)
	log.Info().
		Int("requests", len(snap.DemoRequests)).
		Int("tasks", len(snap.Tasks)).
		Int("overrides", len(snap.UserUpdates)).
		Time("last_updated", snap.LastUpdated).
		Msg("Restored schedule from cache")
}

// saveCache runs after every board change. An empty board is never written
// so it cannot replace a good cache.
func (a *App) saveCache(state schedule.State) {
	if a.cache.Path() == "" || (len(state.DemoRequests) == 0 && len(state.Tasks) == 0) {
		return
	}
	set := a.store.Snapshot(context.Background())
	at := time.Now()
	if state.LastSyncedAt != nil {
		at = *state.LastSyncedAt
	}

	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if err := a.cache.Save(cache.NewSnapshot(state.DemoRequests, state.Tasks, set, at)); err != nil {
		log.Warn().Err(err).Str("path", a.cache.Path()).Msg("Failed to save schedule cache")
	}
}

// Close waits for background work and releases the database.
func (a *App) Close() {
	a.Board.Close()
	a.Notifier.Close()
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close override database")
		}
	}
}
