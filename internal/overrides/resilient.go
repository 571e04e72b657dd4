package overrides

import (
	"context"

	"kitchen_demo_sync/internal/retry"

	"github.com/rs/zerolog/log"
)

// Resilient wraps a Store so that reads degrade to "no override" on failure.
// Every call is a single attempt bounded by the configured timeout.
type Resilient struct {
	store  Store
	config retry.Config
}

func NewResilient(store Store, config retry.Config) *Resilient {
	return &Resilient{store: store, config: config}
}

// Get never fails; errors are logged and reported as a miss.
func (r *Resilient) Get(ctx context.Context, key string) (*Override, error) {
	o, err := retry.WithRetry(ctx, r.config, func(ctx context.Context) (*Override, error) {
		return r.store.Get(ctx, key)
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Override store unavailable, continuing without override")
		return nil, nil
	}
	return o, nil
}

// Put propagates errors so the caller can log the failed write-through.
func (r *Resilient) Put(ctx context.Context, id, naturalKey string, patch Patch, updatedBy string) (*Override, error) {
	return retry.WithRetry(ctx, r.config, func(ctx context.Context) (*Override, error) {
		return r.store.Put(ctx, id, naturalKey, patch, updatedBy)
	})
}

// All never fails; an unreachable store yields an empty listing.
func (r *Resilient) All(ctx context.Context) ([]Override, error) {
	all, err := retry.WithRetry(ctx, r.config, func(ctx context.Context) ([]Override, error) {
		return r.store.All(ctx)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Override store unavailable, syncing with feed values only")
		return nil, nil
	}
	return all, nil
}

// Snapshot loads every override into a Set for one reconciliation pass.
func (r *Resilient) Snapshot(ctx context.Context) Set {
	all, _ := r.All(ctx)
	log.Debug().Int("overrides", len(all)).Msg("Loaded override snapshot")
	return NewSet(all)
}
