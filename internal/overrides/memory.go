package overrides

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store, used when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Override
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Override), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o, ok := m.byID[key]; ok {
		return &o, nil
	}
	var best *Override
	for _, o := range m.byID {
		if o.NaturalKey == key && (best == nil || o.UpdatedAt.After(best.UpdatedAt)) {
			o := o
			best = &o
		}
	}
	return best, nil
}

func (m *MemoryStore) Put(_ context.Context, id, naturalKey string, patch Patch, updatedBy string) (*Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byID[id]
	if !ok {
		o = Override{ID: id}
	}
	o.Apply(patch)
	if naturalKey != "" {
		o.NaturalKey = naturalKey
	}
	o.UpdatedAt = m.now().UTC()
	o.UpdatedBy = updatedBy
	m.byID[id] = o

	out := o
	return &out, nil
}

func (m *MemoryStore) All(_ context.Context) ([]Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Override, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Seed loads previously persisted overrides, keeping their timestamps.
// Existing entries with a newer UpdatedAt win.
func (m *MemoryStore) Seed(all []Override) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range all {
		if prev, ok := m.byID[o.ID]; ok && prev.UpdatedAt.After(o.UpdatedAt) {
			continue
		}
		m.byID[o.ID] = o
	}
}
