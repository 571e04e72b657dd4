package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/overrides"
	"kitchen_demo_sync/internal/resolution"
	"kitchen_demo_sync/internal/slots"

	"github.com/rs/zerolog/log"
)

// FeedChangedBy is recorded as the author of transitions detected during sync.
const FeedChangedBy = "CSV Update"

// ErrMissingRoster is returned when a SyncContext has no roster to resolve teams.
var ErrMissingRoster = errors.New("reconcile: roster is required")

// SyncContext carries everything one reconciliation pass reads. It replaces
// package-level caches: callers build a fresh one per cycle.
type SyncContext struct {
	Previous  map[string]model.DemoRequest
	Overrides overrides.Set
	Tasks     []model.Task
	Roster    *resolution.Roster
	Now       time.Time
	ChangedBy string
}

// ReconcileResult is the merged request set plus what happened along the way.
type ReconcileResult struct {
	Requests    []model.DemoRequest
	Warnings    []model.Warning
	Transitions []model.StatusChange
	New         int
	Missing     int
}

// Reconcile merges fresh feed requests with the previous snapshot and the
// override snapshot. It is a pure function of its inputs: identical inputs
// give identical output, and nothing is persisted.
//
// Fresh requests are emitted in feed order, followed by previously known
// requests absent from this batch (flagged MissingFromFeed, never dropped).
func Reconcile(sc SyncContext, fresh []model.DemoRequest) (ReconcileResult, error) {
	if sc.Roster == nil {
		return ReconcileResult{}, ErrMissingRoster
	}
	if sc.ChangedBy == "" {
		sc.ChangedBy = FeedChangedBy
	}

	m := newMatcher(sc.Previous)
	var res ReconcileResult
	emitted := make(map[string]bool, len(fresh))
	pinned := make(map[string]bool)

	for _, f := range fresh {
		merged := cloneRequest(f)
		merged.MissingFromFeed = false
		merged.FeedLeadStatus = f.LeadStatus

		p, matched := m.match(f)
		if matched {
			merged.ID = p.ID
		} else {
			merged.ID = uniqueID(f, sc.Previous, emitted)
			res.New++
		}
		emitted[merged.ID] = true

		o, hasOverride := sc.Overrides.Lookup(merged.ID, merged.NaturalKey())
		if hasOverride {
			pinLeadStatus(&merged, o)
		}
		if matched && mergeWithPrevious(&merged, p, sc) {
			res.Transitions = append(res.Transitions, model.StatusChange{
				ID:         merged.ID,
				ClientName: merged.ClientName,
				From:       p.LeadStatus,
				To:         merged.LeadStatus,
				At:         sc.Now,
			})
		}
		if hasOverride {
			warnings, placed := applyOverride(&merged, o, sc.Roster)
			res.Warnings = append(res.Warnings, warnings...)
			pinned[merged.ID] = placed
		}
		if !hasOverride || o.Notes == nil {
			if matched {
				merged.Notes = p.Notes
			}
		}
		finalize(&merged, sc.Roster)
		res.Requests = append(res.Requests, merged)
	}

	for _, id := range sortedIDs(sc.Previous) {
		if m.used[id] || emitted[id] {
			continue
		}
		stale := cloneRequest(sc.Previous[id])
		stale.MissingFromFeed = true
		finalize(&stale, sc.Roster)
		res.Requests = append(res.Requests, stale)
		res.Missing++
	}

	res.Warnings = append(res.Warnings, enforceSingleOccupancy(res.Requests, sc.Tasks, sc.Roster, pinned)...)

	log.Debug().
		Int("fresh", len(fresh)).
		Int("new", res.New).
		Int("transitions", len(res.Transitions)).
		Int("missing_from_feed", res.Missing).
		Int("warnings", len(res.Warnings)).
		Msg("Reconciled feed with previous snapshot")
	return res, nil
}

// mergeWithPrevious applies identity carry-over and transition side effects.
// It reports whether the lead status changed.
func mergeWithPrevious(merged *model.DemoRequest, p model.DemoRequest, sc SyncContext) bool {
	merged.PreviousStatus = p.PreviousStatus
	merged.StatusChangedAt = p.StatusChangedAt
	merged.StatusChangedBy = p.StatusChangedBy

	// Kitchen progress belongs to operators; the feed cannot roll it back.
	if p.Status == model.StatusInProgress || p.Status == model.StatusCompleted {
		if merged.Status == model.StatusPending || merged.Status == model.StatusAssigned {
			merged.Status = p.Status
		}
	}

	if p.LeadStatus == merged.LeadStatus {
		// A rescheduled request stays where it was until an operator moves it.
		if merged.LeadStatus == model.LeadRescheduled && !merged.HasAssignment() && p.HasAssignment() {
			keepAssignment(merged, p)
		}
		return false
	}

	at := sc.Now
	merged.PreviousStatus = p.LeadStatus
	merged.StatusChangedAt = &at
	merged.StatusChangedBy = sc.ChangedBy

	switch merged.LeadStatus {
	case model.LeadRescheduled:
		// Keep the slot visible so an operator can move it by hand.
		keepAssignment(merged, p)
	case model.LeadCancelled:
		clearAssignment(merged)
	}

	log.Info().
		Str("id", merged.ID).
		Str("client", merged.ClientName).
		Str("from", string(p.LeadStatus)).
		Str("to", string(merged.LeadStatus)).
		Msg("Lead status transition")
	return true
}

// pinLeadStatus keeps an operator-set lead status while the feed still
// reports the value it had when the operator made the change.
func pinLeadStatus(merged *model.DemoRequest, o overrides.Override) {
	if o.LeadStatus == nil || o.LeadStatus.FeedStatus != merged.LeadStatus {
		return
	}
	merged.LeadStatus = o.LeadStatus.Status
}

// applyOverride lets operator values win over the feed. It reports whether the
// request's placement now comes from the stored assignment.
func applyOverride(merged *model.DemoRequest, o overrides.Override, roster *resolution.Roster) ([]model.Warning, bool) {
	if o.Recipes != nil {
		merged.Recipes = append([]string{}, o.Recipes...)
	}
	if o.Notes != nil {
		merged.Notes = *o.Notes
	}
	if o.MediaLink != nil {
		merged.MediaLink = *o.MediaLink
	}

	if o.Assignment == nil || merged.LeadStatus == model.LeadCancelled || cancelledSince(merged, o) {
		return nil, false
	}
	if o.Assignment.Cleared() {
		clearAssignment(merged)
		return nil, false
	}
	slot, err := slots.Canonical(o.Assignment.Slot)
	if err != nil || !resolution.ValidTeam(o.Assignment.Team) {
		return []model.Warning{{
			RecordID: merged.ID,
			Kind:     model.WarnInvalidSlot,
			Message:  fmt.Sprintf("ignoring stored assignment team %d slot %q", o.Assignment.Team, o.Assignment.Slot),
		}}, false
	}
	if merged.AssignedTeam == nil || *merged.AssignedTeam != o.Assignment.Team {
		merged.AssignedMembers = roster.Members(o.Assignment.Team)
	}
	merged.AssignedTeam = model.IntPtr(o.Assignment.Team)
	merged.AssignedSlot = slot
	return nil, true
}

// cancelledSince reports whether the request went through a cancellation
// after the stored assignment was written, which voids that assignment.
func cancelledSince(r *model.DemoRequest, o overrides.Override) bool {
	if r.PreviousStatus != model.LeadCancelled || r.StatusChangedAt == nil {
		return false
	}
	return r.StatusChangedAt.After(o.UpdatedAt)
}

// finalize enforces per-record invariants and recomputes derived fields.
func finalize(r *model.DemoRequest, roster *resolution.Roster) {
	if r.LeadStatus == model.LeadCancelled {
		clearAssignment(r)
	}
	if r.AssignedTeam != nil && !resolution.ValidTeam(*r.AssignedTeam) {
		r.AssignedTeam = nil
	}
	if r.AssignedSlot != "" && (r.AssignedTeam == nil || !slots.Valid(r.AssignedSlot)) {
		r.AssignedSlot = ""
	}
	if r.AssignedTeam != nil && len(r.AssignedMembers) == 0 {
		r.AssignedMembers = roster.Members(*r.AssignedTeam)
	}
	if r.Recipes == nil {
		r.Recipes = []string{}
	}
	syncWorkflowStatus(r)
	r.ScheduledTeam, r.ScheduledTimeSlot = roster.Describe(r.AssignedTeam, r.AssignedSlot)
}

func syncWorkflowStatus(r *model.DemoRequest) {
	switch {
	case r.Status == "" || (r.Status == model.StatusPending && r.HasAssignment()):
		if r.HasAssignment() {
			r.Status = model.StatusAssigned
		} else {
			r.Status = model.StatusPending
		}
	case r.Status == model.StatusAssigned && !r.HasAssignment():
		r.Status = model.StatusPending
	}
}

// enforceSingleOccupancy clears the slot of any request that collides with a
// task or an earlier claimant of the same (team, slot) cell. Tasks claim first,
// then requests placed by an operator override, then everything else in order.
func enforceSingleOccupancy(requests []model.DemoRequest, tasks []model.Task, roster *resolution.Roster, pinned map[string]bool) []model.Warning {
	occupied := make(map[string]string)
	for _, t := range tasks {
		if t.AssignedTeam != nil && t.AssignedSlot != "" {
			occupied[cellKey(*t.AssignedTeam, t.AssignedSlot)] = t.ID
		}
	}

	var warnings []model.Warning
	claim := func(r *model.DemoRequest) {
		if !r.HasAssignment() {
			return
		}
		cell := cellKey(*r.AssignedTeam, r.AssignedSlot)
		holder, taken := occupied[cell]
		if !taken {
			occupied[cell] = r.ID
			return
		}

		log.Warn().
			Str("id", r.ID).
			Str("occupant", holder).
			Int("team", *r.AssignedTeam).
			Str("slot", r.AssignedSlot).
			Msg("Slot already occupied, dropping conflicting assignment")
		warnings = append(warnings, model.Warning{
			RecordID: r.ID,
			Kind:     model.WarnSlotConflict,
			Message:  fmt.Sprintf("team %d slot %s already held by %s", *r.AssignedTeam, r.AssignedSlot, holder),
		})
		r.AssignedSlot = ""
		syncWorkflowStatus(r)
		r.ScheduledTeam, r.ScheduledTimeSlot = roster.Describe(r.AssignedTeam, r.AssignedSlot)
	}

	for i := range requests {
		if pinned[requests[i].ID] {
			claim(&requests[i])
		}
	}
	for i := range requests {
		if !pinned[requests[i].ID] {
			claim(&requests[i])
		}
	}
	return warnings
}

func cellKey(team int, slot string) string {
	return fmt.Sprintf("%d|%s", team, slot)
}

func keepAssignment(merged *model.DemoRequest, p model.DemoRequest) {
	merged.AssignedTeam = copyTeam(p.AssignedTeam)
	merged.AssignedSlot = p.AssignedSlot
	merged.AssignedMembers = append([]string(nil), p.AssignedMembers...)
}

func clearAssignment(r *model.DemoRequest) {
	r.AssignedTeam = nil
	r.AssignedSlot = ""
	r.AssignedMembers = nil
}

// matcher resolves fresh requests to previous ones, each previous at most once.
type matcher struct {
	previous map[string]model.DemoRequest
	byKey    map[string][]string
	used     map[string]bool
}

func newMatcher(previous map[string]model.DemoRequest) *matcher {
	m := &matcher{
		previous: previous,
		byKey:    make(map[string][]string),
		used:     make(map[string]bool),
	}
	for _, id := range sortedIDs(previous) {
		if k := previous[id].MatchKey(); k != "" {
			m.byKey[k] = append(m.byKey[k], id)
		}
	}
	return m
}

// match prefers an exact id hit, unless both sides carry a name/email and they
// disagree (rows shifted in the sheet), then falls back to name+email.
func (m *matcher) match(f model.DemoRequest) (model.DemoRequest, bool) {
	if p, ok := m.previous[f.ID]; ok && !m.used[f.ID] {
		pk, fk := p.MatchKey(), f.MatchKey()
		if pk == "" || fk == "" || pk == fk {
			m.used[p.ID] = true
			return p, true
		}
	}
	if k := f.MatchKey(); k != "" {
		for _, id := range m.byKey[k] {
			if !m.used[id] {
				m.used[id] = true
				return m.previous[id], true
			}
		}
	}
	return model.DemoRequest{}, false
}

// uniqueID keeps the row-derived id unless another identity already owns it.
func uniqueID(f model.DemoRequest, previous map[string]model.DemoRequest, emitted map[string]bool) string {
	_, taken := previous[f.ID]
	if !taken && !emitted[f.ID] {
		return f.ID
	}
	sum := sha1.Sum([]byte(f.NaturalKey() + "#" + f.ID))
	id := f.ID + "-" + hex.EncodeToString(sum[:4])
	for n := 2; emitted[id] || hasKey(previous, id); n++ {
		id = fmt.Sprintf("%s-%s-%d", f.ID, hex.EncodeToString(sum[:4]), n)
	}
	return id
}

func hasKey(previous map[string]model.DemoRequest, id string) bool {
	_, ok := previous[id]
	return ok
}

func sortedIDs(previous map[string]model.DemoRequest) []string {
	ids := make([]string, 0, len(previous))
	for id := range previous {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyTeam(team *int) *int {
	if team == nil {
		return nil
	}
	return model.IntPtr(*team)
}

func cloneRequest(r model.DemoRequest) model.DemoRequest {
	out := r
	out.AssignedTeam = copyTeam(r.AssignedTeam)
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
