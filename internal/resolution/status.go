package resolution

import (
	"regexp"
	"strings"

	"kitchen_demo_sync/internal/model"

	"github.com/rs/zerolog/log"
)

// leadSynonyms lists known spellings per bucket, already in normalized form
// (lower case, punctuation folded to single spaces). Order matters for the
// substring pass: more specific buckets are checked before planned.
var leadSynonyms = []struct {
	status   model.LeadStatus
	synonyms []string
}{
	{model.LeadCancelled, []string{
		"demo cancelled", "demo canceled", "cancelled", "canceled", "cancel",
		"not interested", "dropped", "lost",
	}},
	{model.LeadRescheduled, []string{
		"demo rescheduled", "rescheduled", "re scheduled", "reschedule",
		"postponed", "moved",
	}},
	{model.LeadGiven, []string{
		"demo given", "given", "demo done", "demo completed", "done", "completed", "delivered",
	}},
	{model.LeadPlanned, []string{
		"demo planned", "planned", "demo scheduled", "scheduled", "booked",
		"confirmed", "new", "pending",
	}},
}

var foldPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Fold lowercases and collapses punctuation/whitespace runs to single spaces.
func Fold(raw string) string {
	return strings.TrimSpace(foldPattern.ReplaceAllString(strings.ToLower(raw), " "))
}

// NormalizeLeadStatus maps a free-text lead status onto one of the four canonical
// values. Unknown input maps to demo_planned and is logged; it never fails.
func NormalizeLeadStatus(raw string) model.LeadStatus {
	status, known := LookupLeadStatus(raw)
	if !known && strings.TrimSpace(raw) != "" {
		log.Warn().Str("lead_status", raw).Msg("Unrecognized lead status, defaulting to demo_planned")
	}
	return status
}

// LookupLeadStatus is NormalizeLeadStatus without the logging side effect.
// known is false for blank or unrecognized input.
func LookupLeadStatus(raw string) (status model.LeadStatus, known bool) {
	folded := Fold(raw)
	if folded == "" {
		return model.LeadPlanned, false
	}

	for _, bucket := range leadSynonyms {
		if folded == Fold(string(bucket.status)) {
			return bucket.status, true
		}
		for _, syn := range bucket.synonyms {
			if folded == syn {
				return bucket.status, true
			}
		}
	}

	for _, bucket := range leadSynonyms {
		for _, syn := range bucket.synonyms {
			if containsWord(folded, syn) {
				return bucket.status, true
			}
		}
	}

	return model.LeadPlanned, false
}

// NormalizeWorkflowStatus parses the trailing status column. Blank or unknown
// input returns "" so the caller can derive the status from the assignment.
func NormalizeWorkflowStatus(raw string) model.WorkflowStatus {
	switch Fold(raw) {
	case "pending", "todo", "unassigned":
		return model.StatusPending
	case "assigned", "scheduled":
		return model.StatusAssigned
	case "in progress", "inprogress", "started", "cooking":
		return model.StatusInProgress
	case "completed", "complete", "done":
		return model.StatusCompleted
	default:
		return ""
	}
}

// containsWord reports whether needle appears in haystack on word boundaries.
func containsWord(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
