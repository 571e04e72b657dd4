package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/resolution"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTeam   = errors.New("team must be between 1 and 5")
	ErrInvalidSlot   = errors.New("slot must look like YYYY-MM-DD-HH:MM with a scheduled start time")
	ErrItemNotFound  = errors.New("item not found")
	ErrInvalidKind   = errors.New("item kind must be request or task")
	ErrCancelled     = errors.New("cancelled requests cannot be scheduled")
	ErrInvalidStatus = errors.New("unknown status")
	ErrSlotOccupied  = errors.New("slot already occupied")
	ErrBoardChanged  = errors.New("board changed since baseline was taken")
)

// Mirror receives request placements after they are committed, for example to
// write them back into the sheet's trailing columns.
type Mirror interface {
	WriteAssignment(ctx context.Context, req model.DemoRequest) error
}

// State is the published board, as served to the dashboard and cached to disk.
type State struct {
	DemoRequests []model.DemoRequest `json:"demoRequests"`
	Tasks        []model.Task        `json:"tasks"`
	Warnings     []model.Warning     `json:"warnings,omitempty"`
	LastSyncedAt *time.Time          `json:"lastSyncedAt"`
	DataSource   model.DataSource    `json:"dataSource"`
	LastError    string              `json:"lastError,omitempty"`
}

// Collisions lists every (team, slot) cell held by more than one item.
// A healthy board always returns nil.
func (s State) Collisions() []string {
	seen := make(map[string]string)
	var out []string
	check := func(team *int, slot, id string) {
		if team == nil || slot == "" {
			return
		}
		cell := fmt.Sprintf("%d|%s", *team, slot)
		if other, ok := seen[cell]; ok {
			out = append(out, fmt.Sprintf("%s held by %s and %s", cell, other, id))
			return
		}
		seen[cell] = id
	}
	for _, t := range s.Tasks {
		check(t.AssignedTeam, t.AssignedSlot, t.ID)
	}
	for _, r := range s.DemoRequests {
		check(r.AssignedTeam, r.AssignedSlot, r.ID)
	}
	return out
}

type Options struct {
	// Store receives operator overrides. Nil keeps overrides in memory only.
	Store  overrides.Store
	Mirror Mirror
	Now    func() time.Time
	// OnChange runs after every committed mutation with a copy of the state.
	OnChange func(State)
}

// Board is the authoritative in-memory schedule. Every mutation holds mu, so
// the single-occupant rule is checked and applied atomically.
type Board struct {
	mu        sync.Mutex
	persistMu sync.Mutex
	wg        sync.WaitGroup

	roster   *resolution.Roster
	store    overrides.Store
	mirror   Mirror
	now      func() time.Time
	onChange func(State)

	requests     []model.DemoRequest
	tasks        []model.Task
	warnings     []model.Warning
	lastSyncedAt time.Time
	source       model.DataSource
	lastError    string
	// version is bumped by every operator mutation.
	version uint64
}

// Baseline is a consistent copy of the board that a reconciliation pass
// starts from.
type Baseline struct {
	Requests map[string]model.DemoRequest
	Tasks    []model.Task
	Version  uint64
}

func NewBoard(roster *resolution.Roster, opts Options) *Board {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Store == nil {
		opts.Store = overrides.NewMemoryStore()
	}
	return &Board{
		roster:   roster,
		store:    opts.Store,
		mirror:   opts.Mirror,
		now:      opts.Now,
		onChange: opts.OnChange,
		source:   model.SourceFallback,
	}
}

func (b *Board) Roster() *resolution.Roster {
	return b.roster
}

// Publish replaces the request set after a successful sync. Tasks are owned
// by the board and left untouched. It fails with ErrBoardChanged when an
// operator mutated the board after base was taken; the caller reconciles again.
func (b *Board) Publish(base uint64, requests []model.DemoRequest, warnings []model.Warning, syncedAt time.Time, source model.DataSource) error {
	b.mu.Lock()
	if b.version != base {
		b.mu.Unlock()
		return ErrBoardChanged
	}
	b.requests = cloneRequests(requests)
	b.warnings = append([]model.Warning(nil), warnings...)
	b.lastSyncedAt = syncedAt
	b.source = source
	b.lastError = ""
	state := b.snapshotLocked()
	b.mu.Unlock()

	if collisions := state.Collisions(); len(collisions) > 0 {
		log.Error().Strs("collisions", collisions).Msg("Published board violates single occupancy")
	}
	log.Info().
		Int("requests", len(state.DemoRequests)).
		Int("tasks", len(state.Tasks)).
		Str("source", string(source)).
		Msg("Published schedule board")
	b.changed(state)
	return nil
}

// Restore seeds the board from a cached snapshot at startup.
func (b *Board) Restore(requests []model.DemoRequest, tasks []model.Task, syncedAt time.Time, source model.DataSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = cloneRequests(requests)
	b.tasks = cloneTasks(tasks)
	b.lastSyncedAt = syncedAt
	b.source = source
	b.version++
}

// RecordError keeps the last good state and surfaces the failure to the UI.
func (b *Board) RecordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.lastError = ""
		return
	}
	b.lastError = err.Error()
}

// Snapshot returns a deep copy of the published state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Baseline returns the current requests keyed by id plus the task list, as
// the next reconciliation's starting point. It returns only after the
// write-throughs of every mutation it includes have finished, so an override
// snapshot taken afterwards is at least as new as the baseline.
func (b *Board) Baseline() Baseline {
	b.mu.Lock()
	out := make(map[string]model.DemoRequest, len(b.requests))
	for _, r := range cloneRequests(b.requests) {
		out[r.ID] = r
	}
	base := Baseline{Requests: out, Tasks: cloneTasks(b.tasks), Version: b.version}
	b.mu.Unlock()

	// Wait out in-flight write-throughs.
	b.persistMu.Lock()
	b.persistMu.Unlock() //nolint:staticcheck // empty critical section is the barrier
	return base
}

// Close waits for in-flight mirror writes.
func (b *Board) Close() {
	b.wg.Wait()
}

func (b *Board) snapshotLocked() State {
	s := State{
		DemoRequests: cloneRequests(b.requests),
		Tasks:        cloneTasks(b.tasks),
		Warnings:     append([]model.Warning(nil), b.warnings...),
		DataSource:   b.source,
		LastError:    b.lastError,
	}
	if s.DemoRequests == nil {
		s.DemoRequests = []model.DemoRequest{}
	}
	if s.Tasks == nil {
		s.Tasks = []model.Task{}
	}
	if !b.lastSyncedAt.IsZero() {
		t := b.lastSyncedAt
		s.LastSyncedAt = &t
	}
	return s
}

func (b *Board) changed(state State) {
	if b.onChange != nil {
		b.onChange(state)
	}
}

func (b *Board) requestIndex(id string) int {
	for i := range b.requests {
		if b.requests[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) taskIndex(id string) int {
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// commit hands the lock over to persistMu so write-throughs land in the same
// order as the in-memory mutations, without holding mu during network calls.
func (b *Board) commit() (State, func()) {
	b.version++
	state := b.snapshotLocked()
	b.persistMu.Lock()
	b.mu.Unlock()
	return state, b.persistMu.Unlock
}

func (b *Board) writeOverride(ctx context.Context, r model.DemoRequest, patch overrides.Patch, by string) {
	if _, err := b.store.Put(ctx, r.ID, r.NaturalKey(), patch, by); err != nil {
		log.Warn().Err(err).Str("id", r.ID).Msg("Failed to persist operator override")
	}
}

func (b *Board) mirrorAssignment(ctx context.Context, r model.DemoRequest) {
	if b.mirror == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.mirror.WriteAssignment(context.WithoutCancel(ctx), r); err != nil {
			log.Warn().Err(err).Str("id", r.ID).Msg("Failed to mirror assignment to sheet")
		}
	}()
}

func cloneRequests(in []model.DemoRequest) []model.DemoRequest {
	if in == nil {
		return nil
	}
	out := make([]model.DemoRequest, len(in))
	for i, r := range in {
		out[i] = cloneRequest(r)
	}
	return out
}

func cloneRequest(r model.DemoRequest) model.DemoRequest {
	out := r
	if r.AssignedTeam != nil {
		out.AssignedTeam = model.IntPtr(*r.AssignedTeam)
	}
	if r.Recipes != nil {
		out.Recipes = append([]string{}, r.Recipes...)
	}
	if r.AssignedMembers != nil {
		out.AssignedMembers = append([]string{}, r.AssignedMembers...)
	}
	if r.StatusChangedAt != nil {
		t := *r.StatusChangedAt
		out.StatusChangedAt = &t
	}
	return out
}

func cloneTasks(in []model.Task) []model.Task {
	if in == nil {
		return nil
	}
	out := make([]model.Task, len(in))
	for i, t := range in {
		out[i] = t
		if t.AssignedTeam != nil {
			out[i].AssignedTeam = model.IntPtr(*t.AssignedTeam)
		}
	}
	return out
}
