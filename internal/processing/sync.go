package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kitchen_demo_sync/internal/feed"
	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/providers"
	"kitchen_demo_sync/internal/schedule"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// maxPublishAttempts bounds how often a cycle re-reconciles when operators
// keep editing the board while it runs.
const maxPublishAttempts = 3

// Fetcher returns the raw feed rows, header first.
type Fetcher interface {
	Fetch(ctx context.Context) (providers.FetchResult, error)
}

// OverrideSnapshotter loads every override once per cycle. It never fails;
// an unreachable store yields an empty set.
type OverrideSnapshotter interface {
	Snapshot(ctx context.Context) overrides.Set
}

// Notifier is the fire-and-forget sink for sync outcomes.
type Notifier interface {
	NotifyWarnings(ctx context.Context, warnings []model.Warning)
	NotifyStatusChanges(ctx context.Context, changes []model.StatusChange)
	NotifySyncFailure(ctx context.Context, err error)
}

// Summary describes one completed cycle.
type Summary struct {
	Source      string
	Requests    int
	New         int
	Transitions int
	Missing     int
	Warnings    int
	Duration    time.Duration
}

// Syncer runs fetch, parse, reconcile and publish cycles. Cycles never
// overlap: a call made while one is running returns ErrSyncInProgress.
type Syncer struct {
	fetcher   Fetcher
	parser    *feed.Parser
	overrides OverrideSnapshotter
	board     *schedule.Board
	notifier  Notifier
	now       func() time.Time
	timeout   time.Duration
	guard     *semaphore.Weighted
}

type SyncerOptions struct {
	Fetcher   Fetcher
	Parser    *feed.Parser
	Overrides OverrideSnapshotter
	Board     *schedule.Board
	Notifier  Notifier
	Now       func() time.Time
	// Timeout bounds a whole cycle. Zero means no extra bound.
	Timeout time.Duration
}

func NewSyncer(opts SyncerOptions) *Syncer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		fetcher:   opts.Fetcher,
		parser:    opts.Parser,
		overrides: opts.Overrides,
		board:     opts.Board,
		notifier:  opts.Notifier,
		now:       opts.Now,
		timeout:   opts.Timeout,
		guard:     semaphore.NewWeighted(1),
	}
}

// RunOnce performs one cycle. On failure the board keeps its last state and
// records the error for the dashboard.
func (s *Syncer) RunOnce(ctx context.Context) (Summary, error) {
	if !s.guard.TryAcquire(1) {
		log.Warn().Msg("Sync requested while another is running, dropping")
		return Summary{}, ErrSyncInProgress
	}
	defer s.guard.Release(1)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	summary, err := s.cycle(ctx, start)
	summary.Duration = s.now().Sub(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", summary.Duration).Msg("Sync cycle failed, keeping previous board")
		s.board.RecordError(err)
		if s.notifier != nil {
			s.notifier.NotifySyncFailure(ctx, err)
		}
		return summary, err
	}

	log.Info().
		Str("source", summary.Source).
		Int("requests", summary.Requests).
		Int("new", summary.New).
		Int("transitions", summary.Transitions).
		Int("missing_from_feed", summary.Missing).
		Int("warnings", summary.Warnings).
		Dur("duration", summary.Duration).
		Msg("Sync cycle complete")
	return summary, nil
}

func (s *Syncer) cycle(ctx context.Context, now time.Time) (Summary, error) {
	log.Debug().Msg("Starting sync cycle")

	fetched, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetching feed: %w", err)
	}
	if len(fetched.Rows) == 0 {
		return Summary{Source: fetched.Source}, fmt.Errorf("fetching feed: %w", feed.ErrEmptyFeed)
	}

	fresh, warnings := s.parser.ParseRows(fetched.Rows)

	var (
		result ReconcileResult
		set    overrides.Set
	)
	for attempt := 1; ; attempt++ {
		base := s.board.Baseline()
		if s.overrides != nil {
			set = s.overrides.Snapshot(ctx)
		}
		sc := SyncContext{
			Previous:  base.Requests,
			Overrides: set,
			Tasks:     base.Tasks,
			Roster:    s.board.Roster(),
			Now:       now.UTC(),
			ChangedBy: FeedChangedBy,
		}
		result, err = Reconcile(sc, fresh)
		if err != nil {
			return Summary{}, err
		}

		all := append(append([]model.Warning(nil), warnings...), result.Warnings...)
		err = s.board.Publish(base.Version, result.Requests, all, now.UTC(), model.SourceFeed)
		if err == nil {
			break
		}
		if !errors.Is(err, schedule.ErrBoardChanged) || attempt >= maxPublishAttempts {
			return Summary{}, fmt.Errorf("publishing board: %w", err)
		}
		log.Debug().Int("attempt", attempt).Msg("Board changed during reconcile, retrying")
	}
	warnings = append(warnings, result.Warnings...)

	if s.notifier != nil {
		s.notifier.NotifyWarnings(ctx, warnings)
		s.notifier.NotifyStatusChanges(ctx, result.Transitions)
	}

	return Summary{
		Source:      fetched.Source,
		Requests:    len(result.Requests),
		New:         result.New,
		Transitions: len(result.Transitions),
		Missing:     result.Missing,
		Warnings:    len(warnings),
	}, nil
}
