package overrides

import (
	"context"
	"strings"
	"time"

	"kitchen_demo_sync/internal/model"
)

// Assignment is an operator-made schedule placement. Team 0 with an empty slot
// records an explicit unassign.
type Assignment struct {
	Team int    `json:"team"`
	Slot string `json:"slot"`
}

func (a Assignment) Cleared() bool {
	return a.Team == 0 || a.Slot == ""
}

// LeadStatus pins an operator-chosen lead status for as long as the feed
// keeps reporting FeedStatus. Once the feed moves on, the feed wins again.
type LeadStatus struct {
	Status     model.LeadStatus `json:"status"`
	FeedStatus model.LeadStatus `json:"feedStatus"`
}

// Override holds the operator-entered values that must survive feed re-syncs.
// Nil fields were never set; a non-nil empty Recipes slice is an explicit clear.
type Override struct {
	ID         string      `json:"id"`
	NaturalKey string      `json:"naturalKey,omitempty"`
	Recipes    []string    `json:"recipes"`
	Notes      *string     `json:"notes,omitempty"`
	MediaLink  *string     `json:"mediaLink,omitempty"`
	Assignment *Assignment `json:"assignment,omitempty"`
	LeadStatus *LeadStatus `json:"leadStatus,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	UpdatedBy  string      `json:"updatedBy"`
}

// Patch is a partial update. Only non-nil fields are applied.
type Patch struct {
	Recipes    []string
	Notes      *string
	MediaLink  *string
	Assignment *Assignment
	LeadStatus *LeadStatus
}

// Apply merges a patch into an override in place.
func (o *Override) Apply(p Patch) {
	if p.Recipes != nil {
		o.Recipes = append([]string{}, p.Recipes...)
	}
	if p.Notes != nil {
		v := *p.Notes
		o.Notes = &v
	}
	if p.MediaLink != nil {
		v := *p.MediaLink
		o.MediaLink = &v
	}
	if p.Assignment != nil {
		v := *p.Assignment
		o.Assignment = &v
	}
	if p.LeadStatus != nil {
		v := *p.LeadStatus
		o.LeadStatus = &v
	}
}

// Store persists overrides keyed by request id, with a secondary natural-key
// lookup for rows the feed has not surfaced under their final id.
type Store interface {
	// Get looks an override up by id or natural key. It returns nil, nil when
	// nothing is stored.
	Get(ctx context.Context, key string) (*Override, error)
	Put(ctx context.Context, id, naturalKey string, patch Patch, updatedBy string) (*Override, error)
	All(ctx context.Context) ([]Override, error)
}

// Set is an in-memory snapshot of the store, taken once per sync so the
// reconciler can stay a pure function.
type Set struct {
	byID  map[string]Override
	byKey map[string]Override
}

func NewSet(all []Override) Set {
	s := Set{
		byID:  make(map[string]Override, len(all)),
		byKey: make(map[string]Override, len(all)),
	}
	for _, o := range all {
		s.byID[o.ID] = o
		if o.NaturalKey == "" {
			continue
		}
		if prev, ok := s.byKey[o.NaturalKey]; !ok || o.UpdatedAt.After(prev.UpdatedAt) {
			s.byKey[o.NaturalKey] = o
		}
	}
	return s
}

// Lookup prefers an exact id match over a natural-key match. An id hit is
// ignored when the stored override clearly belongs to another client, which
// happens when rows shift in the sheet.
func (s Set) Lookup(id, naturalKey string) (Override, bool) {
	if o, ok := s.byID[id]; ok && sameClient(o.NaturalKey, naturalKey) {
		return o, true
	}
	if naturalKey == "" {
		return Override{}, false
	}
	o, ok := s.byKey[naturalKey]
	return o, ok
}

func (s Set) Len() int {
	return len(s.byID)
}

// All returns the snapshot contents keyed by id.
func (s Set) All() map[string]Override {
	out := make(map[string]Override, len(s.byID))
	for id, o := range s.byID {
		out[id] = o
	}
	return out
}

// sameClient compares the name|email part of two natural keys. The mobile
// number is left out so a corrected phone does not orphan operator edits.
func sameClient(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return matchPart(a) == matchPart(b)
}

func matchPart(key string) string {
	if i := strings.LastIndex(key, "|"); i >= 0 {
		return key[:i]
	}
	return key
}
