package schedule

import (
	"context"
	"fmt"
	"strings"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/resolution"

	"github.com/rs/zerolog/log"
)

// DetailsPatch carries operator edits to a request. Nil fields are untouched.
type DetailsPatch struct {
	Recipes   []string `json:"recipes,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
	MediaLink *string  `json:"mediaLink,omitempty"`
}

func (p DetailsPatch) empty() bool {
	return p.Recipes == nil && p.Notes == nil && p.MediaLink == nil
}

// UpdateDetails applies operator edits and writes them through to the
// override store so later syncs keep them.
func (b *Board) UpdateDetails(ctx context.Context, id string, patch DetailsPatch, by string) (model.DemoRequest, error) {
	b.mu.Lock()
	i := b.requestIndex(id)
	if i < 0 {
		b.mu.Unlock()
		return model.DemoRequest{}, fmt.Errorf("%w: request %s", ErrItemNotFound, id)
	}
	r := &b.requests[i]
	if patch.empty() {
		out := cloneRequest(*r)
		b.mu.Unlock()
		return out, nil
	}

	if patch.Recipes != nil {
		r.Recipes = cleanRecipes(patch.Recipes)
		patch.Recipes = r.Recipes
	}
	if patch.Notes != nil {
		r.Notes = *patch.Notes
	}
	if patch.MediaLink != nil {
		r.MediaLink = *patch.MediaLink
	}
	updated := cloneRequest(*r)

	state, done := b.commit()
	defer done()

	log.Info().Str("id", id).Str("by", by).Msg("Updated request details")
	b.writeOverride(ctx, updated, overrides.Patch{
		Recipes:   patch.Recipes,
		Notes:     patch.Notes,
		MediaLink: patch.MediaLink,
	}, by)
	b.changed(state)
	return updated, nil
}

// SetLeadStatus is a manual transition with the same side effects as one
// detected in the feed. The status stays pinned until the feed itself changes.
func (b *Board) SetLeadStatus(ctx context.Context, id string, raw string, by string) (model.DemoRequest, error) {
	status, known := resolution.LookupLeadStatus(raw)
	if !known {
		return model.DemoRequest{}, fmt.Errorf("%w: lead status %q", ErrInvalidStatus, raw)
	}

	b.mu.Lock()
	i := b.requestIndex(id)
	if i < 0 {
		b.mu.Unlock()
		return model.DemoRequest{}, fmt.Errorf("%w: request %s", ErrItemNotFound, id)
	}
	r := &b.requests[i]
	if r.LeadStatus == status {
		out := cloneRequest(*r)
		b.mu.Unlock()
		return out, nil
	}

	at := b.now().UTC()
	r.PreviousStatus = r.LeadStatus
	r.LeadStatus = status
	r.StatusChangedAt = &at
	r.StatusChangedBy = by
	clearedSlot := false
	if status == model.LeadCancelled && r.HasAssignment() {
		r.AssignedTeam = nil
		r.AssignedSlot = ""
		r.AssignedMembers = nil
		r.ScheduledTeam, r.ScheduledTimeSlot = "", ""
		if r.Status == model.StatusAssigned {
			r.Status = model.StatusPending
		}
		clearedSlot = true
	}
	feedStatus := r.FeedLeadStatus
	if feedStatus == "" {
		feedStatus = r.PreviousStatus
	}
	updated := cloneRequest(*r)

	state, done := b.commit()
	defer done()

	log.Info().
		Str("id", id).
		Str("from", string(updated.PreviousStatus)).
		Str("to", string(status)).
		Str("by", by).
		Msg("Lead status changed by operator")

	patch := overrides.Patch{
		LeadStatus: &overrides.LeadStatus{Status: status, FeedStatus: feedStatus},
	}
	if status == model.LeadCancelled {
		patch.Assignment = &overrides.Assignment{}
	}
	b.writeOverride(ctx, updated, patch, by)
	if clearedSlot {
		b.mirrorAssignment(ctx, updated)
	}
	b.changed(state)
	return updated, nil
}

// SetWorkflowStatus records kitchen progress on a request or task. Pending and
// assigned follow the item's placement, so asking for one of them just
// resets progress.
func (b *Board) SetWorkflowStatus(ctx context.Context, kind model.ItemKind, id, raw string) error {
	status := resolution.NormalizeWorkflowStatus(raw)
	if status == "" {
		return fmt.Errorf("%w: workflow status %q", ErrInvalidStatus, raw)
	}

	b.mu.Lock()
	switch kind {
	case model.KindRequest:
		i := b.requestIndex(id)
		if i < 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: request %s", ErrItemNotFound, id)
		}
		r := &b.requests[i]
		r.Status = placementStatus(status, r.HasAssignment())
	case model.KindTask:
		i := b.taskIndex(id)
		if i < 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: task %s", ErrItemNotFound, id)
		}
		t := &b.tasks[i]
		t.Status = placementStatus(status, t.AssignedTeam != nil && t.AssignedSlot != "")
		t.UpdatedAt = b.now().UTC()
	default:
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	state, done := b.commit()
	defer done()
	log.Debug().Str("id", id).Str("status", string(status)).Msg("Workflow status changed")
	b.changed(state)
	return nil
}

func placementStatus(status model.WorkflowStatus, placed bool) model.WorkflowStatus {
	if status != model.StatusPending && status != model.StatusAssigned {
		return status
	}
	if placed {
		return model.StatusAssigned
	}
	return model.StatusPending
}

func cleanRecipes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
