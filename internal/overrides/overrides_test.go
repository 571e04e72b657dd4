package overrides

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/retry"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func strPtr(s string) *string { return &s }

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	mem := NewMemoryStore()
	mem.now = (&clock{t: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)}).now

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "overrides.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.now = (&clock{t: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)}).now

	return map[string]Store{"memory": mem, "sqlite": db}
}

func TestStorePutMergesPatches(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := model.NaturalKey("Jane Doe", "jane@example.com", "+1 555 0100")

			_, err := store.Put(ctx, "demo-1", key, Patch{Recipes: []string{"Dal", "Naan"}}, "alice")
			require.NoError(t, err)
			o, err := store.Put(ctx, "demo-1", "", Patch{
				Notes:      strPtr("allergic to nuts"),
				Assignment: &Assignment{Team: 3, Slot: "2025-08-29-11:00"},
			}, "bob")
			require.NoError(t, err)

			want := Override{
				ID:         "demo-1",
				NaturalKey: key,
				Recipes:    []string{"Dal", "Naan"},
				Notes:      strPtr("allergic to nuts"),
				Assignment: &Assignment{Team: 3, Slot: "2025-08-29-11:00"},
				UpdatedBy:  "bob",
			}
			ignoreTime := cmpopts.IgnoreFields(Override{}, "UpdatedAt")
			if diff := cmp.Diff(want, *o, ignoreTime); diff != "" {
				t.Errorf("Put result mismatch (-want +got):\n%s", diff)
			}

			got, err := store.Get(ctx, "demo-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			if diff := cmp.Diff(want, *got, ignoreTime); diff != "" {
				t.Errorf("Get mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreGetByNaturalKeyPrefersNewest(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := model.NaturalKey("Sam", "sam@example.com", "")

			_, err := store.Put(ctx, "demo-4", key, Patch{Notes: strPtr("old")}, "a")
			require.NoError(t, err)
			_, err = store.Put(ctx, "demo-9", key, Patch{Notes: strPtr("new")}, "a")
			require.NoError(t, err)

			got, err := store.Get(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "demo-9", got.ID)

			miss, err := store.Get(ctx, "nobody")
			require.NoError(t, err)
			assert.Nil(t, miss)
		})
	}
}

func TestStoreRoundTripsExplicitClears(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Put(ctx, "demo-2", "", Patch{
				Recipes:    []string{},
				Assignment: &Assignment{},
				LeadStatus: &LeadStatus{Status: model.LeadGiven, FeedStatus: model.LeadPlanned},
			}, "ops")
			require.NoError(t, err)

			all, err := store.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			o := all[0]
			assert.NotNil(t, o.Recipes)
			assert.Empty(t, o.Recipes)
			require.NotNil(t, o.Assignment)
			assert.True(t, o.Assignment.Cleared())
			assert.Nil(t, o.Notes)
			assert.Nil(t, o.MediaLink)
			require.NotNil(t, o.LeadStatus)
			assert.Equal(t, model.LeadGiven, o.LeadStatus.Status)
			assert.Equal(t, model.LeadPlanned, o.LeadStatus.FeedStatus)
		})
	}
}

func TestStoreAllSortedByID(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"demo-3", "demo-1", "demo-2"} {
				_, err := store.Put(ctx, id, "", Patch{Notes: strPtr(id)}, "ops")
				require.NoError(t, err)
			}
			all, err := store.All(ctx)
			require.NoError(t, err)
			ids := make([]string, len(all))
			for i, o := range all {
				ids[i] = o.ID
			}
			assert.Equal(t, []string{"demo-1", "demo-2", "demo-3"}, ids)
		})
	}
}

func TestSetLookup(t *testing.T) {
	jane := model.NaturalKey("Jane", "jane@example.com", "111")
	janeNewPhone := model.NaturalKey("Jane", "jane@example.com", "222")
	sam := model.NaturalKey("Sam", "sam@example.com", "333")
	t0 := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	set := NewSet([]Override{
		{ID: "demo-1", NaturalKey: jane, Notes: strPtr("jane"), UpdatedAt: t0},
		{ID: "demo-5", NaturalKey: sam, Notes: strPtr("sam"), UpdatedAt: t0},
	})
	assert.Equal(t, 2, set.Len())

	o, ok := set.Lookup("demo-1", jane)
	require.True(t, ok)
	assert.Equal(t, "jane", *o.Notes)

	o, ok = set.Lookup("demo-1", janeNewPhone)
	require.True(t, ok, "a changed phone keeps the id match")
	assert.Equal(t, "jane", *o.Notes)

	// Rows shifted: demo-1 now holds Sam. The id hit is rejected and the
	// natural key finds Sam's own override.
	o, ok = set.Lookup("demo-1", sam)
	require.True(t, ok)
	assert.Equal(t, "demo-5", o.ID)

	_, ok = set.Lookup("demo-1", model.NaturalKey("Ana", "", ""))
	assert.False(t, ok)

	_, ok = set.Lookup("demo-7", "")
	assert.False(t, ok)

	all := set.All()
	delete(all, "demo-1")
	assert.Equal(t, 2, set.Len(), "All returns a copy")
}

func TestMemoryStoreSeedKeepsNewer(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.now = func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) }

	_, err := mem.Put(ctx, "demo-1", "", Patch{Notes: strPtr("live")}, "ops")
	require.NoError(t, err)

	old := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	mem.Seed([]Override{
		{ID: "demo-1", Notes: strPtr("cached"), UpdatedAt: old},
		{ID: "demo-2", Notes: strPtr("cached two"), UpdatedAt: old},
	})

	one, err := mem.Get(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, "live", *one.Notes)

	two, err := mem.Get(ctx, "demo-2")
	require.NoError(t, err)
	assert.Equal(t, "cached two", *two.Notes)
	assert.True(t, two.UpdatedAt.Equal(old))
}

var errUnavailable = errors.New("store unavailable")

type brokenStore struct{ calls int }

func (b *brokenStore) Get(context.Context, string) (*Override, error) {
	b.calls++
	return nil, errUnavailable
}

func (b *brokenStore) Put(context.Context, string, string, Patch, string) (*Override, error) {
	b.calls++
	return nil, errUnavailable
}

func (b *brokenStore) All(context.Context) ([]Override, error) {
	b.calls++
	return nil, errUnavailable
}

func TestResilientDegradesReads(t *testing.T) {
	ctx := context.Background()
	broken := &brokenStore{}
	r := NewResilient(broken, retry.Config{Name: "override store", Timeout: time.Second})

	o, err := r.Get(ctx, "demo-1")
	assert.NoError(t, err)
	assert.Nil(t, o)

	all, err := r.All(ctx)
	assert.NoError(t, err)
	assert.Empty(t, all)

	assert.Equal(t, 0, r.Snapshot(ctx).Len())

	_, err = r.Put(ctx, "demo-1", "", Patch{Notes: strPtr("x")}, "ops")
	assert.ErrorIs(t, err, errUnavailable)

	assert.Equal(t, 4, broken.calls, "one attempt per call")
}

func TestResilientPassesThrough(t *testing.T) {
	ctx := context.Background()
	r := NewResilient(NewMemoryStore(), retry.Config{Name: "override store"})

	_, err := r.Put(ctx, "demo-1", "k", Patch{MediaLink: strPtr("https://example.com/v")}, "ops")
	require.NoError(t, err)

	set := r.Snapshot(ctx)
	o, ok := set.Lookup("demo-1", "k")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/v", *o.MediaLink)
}
