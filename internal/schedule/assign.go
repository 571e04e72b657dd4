package schedule

import (
	"context"
	"fmt"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/resolution"
	"kitchen_demo_sync/internal/slots"

	"github.com/rs/zerolog/log"
)

// Outcome names how a placement attempt ended.
type Outcome string

const (
	OutcomeAssigned Outcome = "assigned"
	OutcomeConflict Outcome = "conflict"
)

// AssignResult is the normal outcome of a placement attempt. A conflict is not
// an error: the caller tells the operator and nothing changes.
type AssignResult struct {
	Outcome      Outcome        `json:"outcome"`
	ItemID       string         `json:"itemId"`
	Kind         model.ItemKind `json:"kind"`
	Team         int            `json:"team"`
	Slot         string         `json:"slot"`
	OccupantID   string         `json:"occupantId,omitempty"`
	OccupantKind model.ItemKind `json:"occupantKind,omitempty"`
}

// ConflictError is returned by operations that cannot report an AssignResult,
// such as creating a task directly into an occupied cell.
type ConflictError struct {
	Team         int
	Slot         string
	OccupantID   string
	OccupantKind model.ItemKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("team %d slot %s is held by %s %s", e.Team, e.Slot, e.OccupantKind, e.OccupantID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotOccupied
}

// ValidatePlacement checks the team range and the slot key format, and
// returns the slot in canonical form.
func ValidatePlacement(team int, slot string) (string, error) {
	if !resolution.ValidTeam(team) {
		return "", fmt.Errorf("%w: got %d", ErrInvalidTeam, team)
	}
	canonical, err := slots.Canonical(slot)
	if err != nil {
		return "", fmt.Errorf("%w: got %q", ErrInvalidSlot, slot)
	}
	return canonical, nil
}

// Assign places a request or task on (team, slot). Re-assigning an item to the
// cell it already holds succeeds without changes.
func (b *Board) Assign(ctx context.Context, kind model.ItemKind, id string, team int, slot, by string) (AssignResult, error) {
	result := AssignResult{ItemID: id, Kind: kind, Team: team, Slot: slot}
	slot, err := ValidatePlacement(team, slot)
	if err != nil {
		return result, err
	}
	result.Slot = slot

	b.mu.Lock()
	switch kind {
	case model.KindRequest:
		i := b.requestIndex(id)
		if i < 0 {
			b.mu.Unlock()
			return result, fmt.Errorf("%w: request %s", ErrItemNotFound, id)
		}
		if b.requests[i].LeadStatus == model.LeadCancelled {
			b.mu.Unlock()
			return result, fmt.Errorf("%w: %s", ErrCancelled, id)
		}
	case model.KindTask:
		if b.taskIndex(id) < 0 {
			b.mu.Unlock()
			return result, fmt.Errorf("%w: task %s", ErrItemNotFound, id)
		}
	default:
		b.mu.Unlock()
		return result, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	if occID, occKind, taken := b.occupantLocked(team, slot); taken {
		if occID == id && occKind == kind {
			b.mu.Unlock()
			result.Outcome = OutcomeAssigned
			return result, nil
		}
		b.mu.Unlock()
		log.Info().
			Str("item", id).
			Str("occupant", occID).
			Int("team", team).
			Str("slot", slot).
			Msg("Assignment rejected, slot occupied")
		result.Outcome = OutcomeConflict
		result.OccupantID = occID
		result.OccupantKind = occKind
		return result, nil
	}

	var placed model.DemoRequest
	if kind == model.KindRequest {
		r := &b.requests[b.requestIndex(id)]
		r.AssignedTeam = model.IntPtr(team)
		r.AssignedSlot = slot
		r.AssignedMembers = b.roster.Members(team)
		if r.Status == model.StatusPending || r.Status == "" {
			r.Status = model.StatusAssigned
		}
		r.ScheduledTeam, r.ScheduledTimeSlot = b.roster.Describe(r.AssignedTeam, r.AssignedSlot)
		placed = cloneRequest(*r)
	} else {
		t := &b.tasks[b.taskIndex(id)]
		placeTask(t, team, slot)
		t.UpdatedAt = b.now().UTC()
	}

	state, done := b.commit()
	defer done()

	log.Info().
		Str("item", id).
		Str("kind", string(kind)).
		Int("team", team).
		Str("slot", slot).
		Str("by", by).
		Msg("Assigned schedule slot")

	if kind == model.KindRequest {
		b.writeOverride(ctx, placed, overrides.Patch{
			Assignment: &overrides.Assignment{Team: team, Slot: slot},
		}, by)
		b.mirrorAssignment(ctx, placed)
	}
	b.changed(state)

	result.Outcome = OutcomeAssigned
	return result, nil
}

// Unassign clears an item's placement. It is allowed unconditionally.
func (b *Board) Unassign(ctx context.Context, kind model.ItemKind, id, by string) error {
	b.mu.Lock()
	var cleared model.DemoRequest
	switch kind {
	case model.KindRequest:
		i := b.requestIndex(id)
		if i < 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: request %s", ErrItemNotFound, id)
		}
		r := &b.requests[i]
		r.AssignedTeam = nil
		r.AssignedSlot = ""
		r.AssignedMembers = nil
		if r.Status == model.StatusAssigned {
			r.Status = model.StatusPending
		}
		r.ScheduledTeam, r.ScheduledTimeSlot = "", ""
		cleared = cloneRequest(*r)
	case model.KindTask:
		i := b.taskIndex(id)
		if i < 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: task %s", ErrItemNotFound, id)
		}
		t := &b.tasks[i]
		t.AssignedTeam = nil
		t.AssignedSlot = ""
		if t.Status == model.StatusAssigned {
			t.Status = model.StatusPending
		}
		t.UpdatedAt = b.now().UTC()
	default:
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	state, done := b.commit()
	defer done()

	log.Info().Str("item", id).Str("kind", string(kind)).Str("by", by).Msg("Cleared schedule slot")

	if kind == model.KindRequest {
		b.writeOverride(ctx, cleared, overrides.Patch{Assignment: &overrides.Assignment{}}, by)
		b.mirrorAssignment(ctx, cleared)
	}
	b.changed(state)
	return nil
}

// Occupant reports which item holds (team, slot), if any.
func (b *Board) Occupant(team int, slot string) (string, model.ItemKind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.occupantLocked(team, slot)
}

func (b *Board) occupantLocked(team int, slot string) (string, model.ItemKind, bool) {
	for _, t := range b.tasks {
		if t.AssignedTeam != nil && *t.AssignedTeam == team && t.AssignedSlot == slot {
			return t.ID, model.KindTask, true
		}
	}
	for _, r := range b.requests {
		if r.AssignedTeam != nil && *r.AssignedTeam == team && r.AssignedSlot == slot {
			return r.ID, model.KindRequest, true
		}
	}
	return "", "", false
}

func placeTask(t *model.Task, team int, slot string) {
	t.AssignedTeam = model.IntPtr(team)
	t.AssignedSlot = slot
	if date, hhmm, err := slots.ParseKey(slot); err == nil {
		t.Date = date
		t.Time = slots.Display12h(hhmm)
	}
	if t.Status == model.StatusPending || t.Status == "" {
		t.Status = model.StatusAssigned
	}
}
