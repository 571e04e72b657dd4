package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/resolution"
	"kitchen_demo_sync/internal/schedule"
	"kitchen_demo_sync/internal/slots"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
)

// Version is bumped whenever the blob layout changes. Older blobs are ignored.
const Version = 2

var (
	ErrCacheNotFound   = errors.New("cache not found")
	ErrCacheCorrupt    = errors.New("cache corrupt")
	ErrVersionMismatch = errors.New("cache version mismatch")
)

// Placement is the compact (team, slot) record kept for every assigned item.
type Placement struct {
	Team int    `json:"team"`
	Slot string `json:"slot"`
}

// Snapshot is the last-known-good state, reused when every feed source fails.
type Snapshot struct {
	Version      int                           `json:"version"`
	LastUpdated  time.Time                     `json:"lastUpdated"`
	DemoRequests []model.DemoRequest           `json:"demoRequests"`
	Tasks        []model.Task                  `json:"tasks"`
	ScheduleData map[string]Placement          `json:"scheduleData"`
	UserUpdates  map[string]overrides.Override `json:"userUpdates"`
}

// NewSnapshot builds a blob from a published board state and an override set.
func NewSnapshot(requests []model.DemoRequest, tasks []model.Task, ovr overrides.Set, at time.Time) Snapshot {
	s := Snapshot{
		Version:      Version,
		LastUpdated:  at.UTC(),
		DemoRequests: requests,
		Tasks:        tasks,
		ScheduleData: make(map[string]Placement),
		UserUpdates:  ovr.All(),
	}
	for _, r := range requests {
		if r.HasAssignment() {
			s.ScheduleData[r.ID] = Placement{Team: *r.AssignedTeam, Slot: r.AssignedSlot}
		}
	}
	for _, t := range tasks {
		if t.AssignedTeam != nil && t.AssignedSlot != "" {
			s.ScheduleData[t.ID] = Placement{Team: *t.AssignedTeam, Slot: t.AssignedSlot}
		}
	}
	return s
}

// File persists one Snapshot as JSON. A zero-value path disables the cache.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Load returns ErrCacheNotFound when nothing was saved yet, ErrVersionMismatch
// for older layouts and ErrCacheCorrupt when the file cannot be decoded or
// describes a board that breaks its placement rules.
func (f *File) Load() (Snapshot, error) {
	if f == nil || f.path == "" {
		return Snapshot{}, ErrCacheNotFound
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrCacheNotFound
		}
		return Snapshot{}, fmt.Errorf("reading cache %s: %w", f.path, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	if s.Version != Version {
		return Snapshot{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, s.Version, Version)
	}
	if err := s.validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	log.Debug().
		Str("path", f.path).
		Int("requests", len(s.DemoRequests)).
		Int("tasks", len(s.Tasks)).
		Time("last_updated", s.LastUpdated).
		Msg("Loaded cached snapshot")
	return s, nil
}

// validate rejects blobs whose items could not have come from a published
// board: unknown teams, bad slot keys, reused ids or shared cells. Valid slot
// keys are rewritten in canonical form before cells are compared.
func (s *Snapshot) validate() error {
	ids := make(map[string]bool, len(s.DemoRequests)+len(s.Tasks))
	check := func(id string, team *int, slot *string) error {
		if id == "" {
			return errors.New("item without id")
		}
		if ids[id] {
			return fmt.Errorf("duplicate id %s", id)
		}
		ids[id] = true
		if team != nil && !resolution.ValidTeam(*team) {
			return fmt.Errorf("%s: invalid team %d", id, *team)
		}
		if *slot == "" {
			return nil
		}
		if team == nil {
			return fmt.Errorf("%s: slot %s without a team", id, *slot)
		}
		canonical, err := slots.Canonical(*slot)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		*slot = canonical
		return nil
	}
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if err := check(t.ID, t.AssignedTeam, &t.AssignedSlot); err != nil {
			return err
		}
	}
	for i := range s.DemoRequests {
		r := &s.DemoRequests[i]
		if err := check(r.ID, r.AssignedTeam, &r.AssignedSlot); err != nil {
			return err
		}
	}

	state := schedule.State{DemoRequests: s.DemoRequests, Tasks: s.Tasks}
	if collisions := state.Collisions(); len(collisions) > 0 {
		return fmt.Errorf("slot collision: %s", collisions[0])
	}
	return nil
}

// Save replaces the cache file atomically so a crash never leaves half a blob.
func (f *File) Save(s Snapshot) error {
	if f == nil || f.path == "" {
		return nil
	}
	s.Version = Version

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir: %w", err)
		}
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing cache %s: %w", f.path, err)
	}
	return nil
}
