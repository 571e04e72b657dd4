package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() ([]model.DemoRequest, []model.Task, overrides.Set) {
	at := time.Date(2025, 8, 29, 8, 0, 0, 0, time.UTC)
	requests := []model.DemoRequest{
		{
			ID:              "demo-1",
			RowIndex:        1,
			ClientName:      "Jane",
			LeadStatus:      model.LeadPlanned,
			DemoDate:        "2025-08-29",
			DemoTime:        "11:00 AM",
			Recipes:         []string{"Dal"},
			AssignedTeam:    model.IntPtr(2),
			AssignedSlot:    "2025-08-29-11:00",
			AssignedMembers: []string{"Kabir", "Ishita"},
			Status:          model.StatusAssigned,
		},
		{
			ID:              "demo-2",
			RowIndex:        2,
			ClientName:      "Sam",
			LeadStatus:      model.LeadCancelled,
			Recipes:         []string{},
			AssignedMembers: []string{},
			Status:          model.StatusPending,
			MissingFromFeed: true,
		},
	}
	tasks := []model.Task{{
		ID:           "task-1",
		Title:        "Deep clean",
		Type:         "cleaning",
		AssignedTeam: model.IntPtr(5),
		AssignedSlot: "2025-08-29-17:00",
		Status:       model.StatusAssigned,
		CreatedAt:    at,
		UpdatedAt:    at,
	}}
	notes := "bring aprons"
	set := overrides.NewSet([]overrides.Override{{ID: "demo-1", Notes: &notes, UpdatedAt: at, UpdatedBy: "ops"}})
	return requests, tasks, set
}

func TestSaveLoadRoundTrip(t *testing.T) {
	requests, tasks, set := sampleState()
	at := time.Date(2025, 8, 29, 9, 30, 0, 0, time.UTC)
	f := NewFile(filepath.Join(t.TempDir(), "state", "cache.json"))

	snap := NewSnapshot(requests, tasks, set, at)
	require.NoError(t, f.Save(snap))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.True(t, got.LastUpdated.Equal(at))
	if diff := cmp.Diff(requests, got.DemoRequests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tasks, got.Tasks); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]Placement{
		"demo-1": {Team: 2, Slot: "2025-08-29-11:00"},
		"task-1": {Team: 5, Slot: "2025-08-29-17:00"},
	}, got.ScheduleData)
	require.Contains(t, got.UserUpdates, "demo-1")
	assert.Equal(t, "bring aprons", *got.UserUpdates["demo-1"].Notes)
}

func TestLoadMissing(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "nope.json")).Load()
	assert.ErrorIs(t, err, ErrCacheNotFound)

	_, err = NewFile("").Load()
	assert.ErrorIs(t, err, ErrCacheNotFound)

	var nilFile *File
	_, err = nilFile.Load()
	assert.ErrorIs(t, err, ErrCacheNotFound)
	assert.NoError(t, nilFile.Save(Snapshot{}))
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "demoRequests": [`), 0o600))

	_, err := NewFile(path).Load()
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "demoRequests": []}`), 0o600))

	_, err := NewFile(path).Load()
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	requests, tasks, set := sampleState()
	f := NewFile(filepath.Join(t.TempDir(), "cache.json"))

	require.NoError(t, f.Save(NewSnapshot(requests, tasks, set, time.Now())))
	require.NoError(t, f.Save(NewSnapshot(requests[:1], nil, overrides.Set{}, time.Now())))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Len(t, got.DemoRequests, 1)
	assert.Empty(t, got.Tasks)
	assert.Empty(t, got.UserUpdates)
}

func TestRoundTripKeepsRecipeClear(t *testing.T) {
	at := time.Date(2025, 8, 29, 8, 0, 0, 0, time.UTC)
	set := overrides.NewSet([]overrides.Override{
		{ID: "demo-1", Recipes: []string{}, UpdatedAt: at},
		{ID: "demo-2", UpdatedAt: at},
	})
	f := NewFile(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, f.Save(NewSnapshot(nil, nil, set, at)))

	got, err := f.Load()
	require.NoError(t, err)
	cleared := got.UserUpdates["demo-1"].Recipes
	assert.NotNil(t, cleared, "an explicit clear survives a restart")
	assert.Empty(t, cleared)
	assert.Nil(t, got.UserUpdates["demo-2"].Recipes, "unset recipes stay unset")
}

func TestLoadRejectsInvalidBoard(t *testing.T) {
	good := func() Snapshot {
		requests, tasks, set := sampleState()
		return NewSnapshot(requests, tasks, set, time.Now())
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"team out of range", func(s *Snapshot) { s.DemoRequests[0].AssignedTeam = model.IntPtr(9) }},
		{"malformed slot", func(s *Snapshot) { s.DemoRequests[0].AssignedSlot = "tomorrow morning" }},
		{"slot without team", func(s *Snapshot) { s.Tasks[0].AssignedTeam = nil }},
		{"duplicate id", func(s *Snapshot) { s.Tasks[0].ID = "demo-1" }},
		{"missing id", func(s *Snapshot) { s.DemoRequests[1].ID = "" }},
		{"shared cell", func(s *Snapshot) {
			s.Tasks[0].AssignedTeam = model.IntPtr(2)
			s.Tasks[0].AssignedSlot = "2025-08-29-11:00"
		}},
		{"shared cell after canonical form", func(s *Snapshot) {
			s.Tasks[0].AssignedTeam = model.IntPtr(2)
			s.Tasks[0].AssignedSlot = "2025-08-29-9:00"
			s.DemoRequests[0].AssignedSlot = "2025-08-29-09:00"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := good()
			tt.mutate(&snap)
			f := NewFile(filepath.Join(t.TempDir(), "cache.json"))
			require.NoError(t, f.Save(snap))

			_, err := f.Load()
			assert.ErrorIs(t, err, ErrCacheCorrupt)
		})
	}
}

func TestLoadCanonicalizesSlots(t *testing.T) {
	requests, tasks, set := sampleState()
	requests[0].AssignedSlot = "2025-08-29-9:00"
	f := NewFile(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, f.Save(NewSnapshot(requests, tasks, set, time.Now())))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-08-29-09:00", got.DemoRequests[0].AssignedSlot)
}
