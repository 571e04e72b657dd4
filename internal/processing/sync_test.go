package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kitchen_demo_sync/internal/feed"
	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/providers"
	"kitchen_demo_sync/internal/resolution"
	"kitchen_demo_sync/internal/retry"
	"kitchen_demo_sync/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeFetcher struct {
	mu      sync.Mutex
	rows    [][]string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) set(rows [][]string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

func (f *fakeFetcher) Fetch(ctx context.Context) (providers.FetchResult, error) {
	if f.started != nil {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return providers.FetchResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return providers.FetchResult{}, f.err
	}
	return providers.FetchResult{Rows: f.rows, Source: "test-feed"}, nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	warnings    [][]model.Warning
	transitions []model.StatusChange
	failures    []error
}

func (n *fakeNotifier) NotifyWarnings(_ context.Context, w []model.Warning) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, w)
}

func (n *fakeNotifier) NotifyStatusChanges(_ context.Context, c []model.StatusChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, c...)
}

func (n *fakeNotifier) NotifySyncFailure(_ context.Context, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, err)
}

// mutatingSnapshotter simulates an operator edit landing while a cycle
// reconciles, for the first `times` snapshots.
type mutatingSnapshotter struct {
	board *schedule.Board
	times int
	calls int
}

func (m *mutatingSnapshotter) Snapshot(ctx context.Context) overrides.Set {
	m.calls++
	if m.calls <= m.times {
		if _, err := m.board.CreateTask(ctx, schedule.TaskInput{Title: "Prep station"}, "ops"); err != nil {
			panic(err)
		}
	}
	return overrides.NewSet(nil)
}

func feedRows(rows ...map[int]string) [][]string {
	out := [][]string{feed.Headers()}
	for _, cells := range rows {
		row := make([]string, feed.ColumnCount)
		for col, v := range cells {
			row[col] = v
		}
		out = append(out, row)
	}
	return out
}

func janeRow(status string) map[int]string {
	return map[int]string{
		feed.ColFullName:       "Jane Doe",
		feed.ColEmail:          "jane@example.com",
		feed.ColLeadStatus:     status,
		feed.ColDemoDate:       "29/08/25;11:00",
		feed.ColTeamAssignment: "Meera | 11:00",
	}
}

func newTestSyncer(fetcher Fetcher, snap OverrideSnapshotter, notifier Notifier) (*Syncer, *schedule.Board) {
	roster := resolution.DefaultRoster()
	now := func() time.Time { return syncNow }
	board := schedule.NewBoard(roster, schedule.Options{Now: now})
	if snap == nil {
		snap = overrides.NewResilient(overrides.NewMemoryStore(), retry.Config{Name: "override store"})
	}
	return NewSyncer(SyncerOptions{
		Fetcher:   fetcher,
		Parser:    feed.NewParser(roster, now),
		Overrides: snap,
		Board:     board,
		Notifier:  notifier,
		Now:       now,
	}), board
}

func TestRunOncePublishesBoard(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &fakeFetcher{rows: feedRows(janeRow("Demo Planned"))}
	notifier := &fakeNotifier{}
	syncer, board := newTestSyncer(fetcher, nil, notifier)

	summary, err := syncer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-feed", summary.Source)
	assert.Equal(t, 1, summary.Requests)
	assert.Equal(t, 1, summary.New)

	state := board.Snapshot()
	require.Len(t, state.DemoRequests, 1)
	assert.Equal(t, model.SourceFeed, state.DataSource)
	require.NotNil(t, state.LastSyncedAt)
	assert.True(t, state.LastSyncedAt.Equal(syncNow))
	assert.Empty(t, state.LastError)

	jane := state.DemoRequests[0]
	assert.Equal(t, "demo-1", jane.ID)
	require.NotNil(t, jane.AssignedTeam)
	assert.Equal(t, 1, *jane.AssignedTeam)
	assert.Equal(t, "2025-08-29-11:00", jane.AssignedSlot)
	assert.Empty(t, state.Collisions())

	// Cancelled in the sheet: the slot is freed and the kitchen is told.
	fetcher.set(feedRows(janeRow("Demo Cancelled")), nil)
	summary, err = syncer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Transitions)

	jane = board.Snapshot().DemoRequests[0]
	assert.False(t, jane.HasAssignment())
	require.Len(t, notifier.transitions, 1)
	assert.Equal(t, model.LeadCancelled, notifier.transitions[0].To)
	assert.Empty(t, notifier.failures)
}

func TestRunOnceFailureKeepsLastState(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &fakeFetcher{rows: feedRows(janeRow("Demo Planned"))}
	notifier := &fakeNotifier{}
	syncer, board := newTestSyncer(fetcher, nil, notifier)

	_, err := syncer.RunOnce(context.Background())
	require.NoError(t, err)

	feedDown := errors.New("HTTP 403")
	fetcher.set(nil, feedDown)
	_, err = syncer.RunOnce(context.Background())
	require.ErrorIs(t, err, feedDown)

	state := board.Snapshot()
	assert.Len(t, state.DemoRequests, 1, "previous board is retained")
	assert.Equal(t, model.SourceFeed, state.DataSource)
	assert.Contains(t, state.LastError, "HTTP 403")
	require.Len(t, notifier.failures, 1)
	assert.ErrorIs(t, notifier.failures[0], feedDown)

	// The next good cycle clears the error.
	fetcher.set(feedRows(janeRow("Demo Planned")), nil)
	_, err = syncer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, board.Snapshot().LastError)
}

func TestRunOnceEmptyFeedIsAnError(t *testing.T) {
	syncer, board := newTestSyncer(&fakeFetcher{}, nil, nil)

	_, err := syncer.RunOnce(context.Background())
	assert.ErrorIs(t, err, feed.ErrEmptyFeed)
	assert.Equal(t, model.SourceFallback, board.Snapshot().DataSource)
}

func TestRunOnceDropsReentrantCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &fakeFetcher{
		rows:    feedRows(janeRow("Demo Planned")),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	syncer, _ := newTestSyncer(fetcher, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := syncer.RunOnce(context.Background())
		done <- err
	}()
	<-fetcher.started

	_, err := syncer.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(fetcher.release)
	require.NoError(t, <-done)
}

func TestRunOnceRetriesWhenBoardChanges(t *testing.T) {
	fetcher := &fakeFetcher{rows: feedRows(janeRow("Demo Planned"))}
	snap := &mutatingSnapshotter{times: 1}
	syncer, board := newTestSyncer(fetcher, snap, nil)
	snap.board = board

	_, err := syncer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.calls)

	state := board.Snapshot()
	assert.Len(t, state.DemoRequests, 1)
	assert.Len(t, state.Tasks, 1, "operator edit made mid-cycle survives")
}

func TestRunOnceGivesUpWhenBoardKeepsChanging(t *testing.T) {
	fetcher := &fakeFetcher{rows: feedRows(janeRow("Demo Planned"))}
	snap := &mutatingSnapshotter{times: maxPublishAttempts}
	syncer, board := newTestSyncer(fetcher, snap, nil)
	snap.board = board

	_, err := syncer.RunOnce(context.Background())
	require.ErrorIs(t, err, schedule.ErrBoardChanged)
	assert.Equal(t, maxPublishAttempts, snap.calls)
	assert.Empty(t, board.Snapshot().DemoRequests)
}

func TestRunOnceHonoursTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &fakeFetcher{
		rows:    feedRows(janeRow("Demo Planned")),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	syncer, board := newTestSyncer(fetcher, nil, nil)
	syncer.timeout = 20 * time.Millisecond

	_, err := syncer.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, board.Snapshot().LastError)
}
