package model

import (
	"regexp"
	"strings"
	"time"
)

// LeadStatus is the sales-side state of a demo request as reported by the feed.
type LeadStatus string

const (
	LeadPlanned     LeadStatus = "demo_planned"
	LeadRescheduled LeadStatus = "demo_rescheduled"
	LeadCancelled   LeadStatus = "demo_cancelled"
	LeadGiven       LeadStatus = "demo_given"
)

// WorkflowStatus is the kitchen-side progress of a request or task.
type WorkflowStatus string

const (
	StatusPending    WorkflowStatus = "pending"
	StatusAssigned   WorkflowStatus = "assigned"
	StatusInProgress WorkflowStatus = "in_progress"
	StatusCompleted  WorkflowStatus = "completed"
)

// ItemKind distinguishes feed-derived requests from manually created tasks
// when both compete for the same schedule cell.
type ItemKind string

const (
	KindRequest ItemKind = "request"
	KindTask    ItemKind = "task"
)

// DataSource tags where the currently published board came from.
type DataSource string

const (
	SourceFeed     DataSource = "feed"
	SourceCached   DataSource = "cached"
	SourceFallback DataSource = "fallback"
)

// FeedRecord is one spreadsheet row after decoding. It is rebuilt on every sync.
type FeedRecord struct {
	RowIndex      int
	ClientName    string
	ClientEmail   string
	ClientMobile  string
	LeadStatusRaw string
	SalesRep      string
	Assignee      string
	DemoDateRaw   string
	RecipesRaw    string
	AssignmentRaw string
	MediaLink     string

	// Trailing columns written back by the dashboard. Empty when absent.
	AssignedTeamRaw string
	AssignedSlotRaw string
	StatusRaw       string

	DemoDate     string // YYYY-MM-DD
	DemoTime     string // "3:00 PM"
	DemoClock    string // "15:00", empty when the cell had no time
	DateDegraded bool
	Assignment   Assignment
}

// DemoRequest is the authoritative, reconciled view of a feed row.
type DemoRequest struct {
	ID string `json:"id"`
	// RowIndex is the request's current position in the feed (header = 0).
	RowIndex     int        `json:"rowIndex"`
	ClientName   string     `json:"clientName"`
	ClientEmail  string     `json:"clientEmail"`
	ClientMobile string     `json:"clientMobile"`
	Assignee     string     `json:"assignee"`
	SalesRep     string     `json:"salesRep"`
	LeadStatus   LeadStatus `json:"leadStatus"`
	// FeedLeadStatus is what the feed last reported, before any operator pin.
	FeedLeadStatus LeadStatus `json:"feedLeadStatus,omitempty"`
	DemoDate       string     `json:"demoDate"`
	DemoTime       string     `json:"demoTime"`
	Recipes        []string   `json:"recipes"`
	Notes          string     `json:"notes,omitempty"`
	MediaLink      string     `json:"mediaLink,omitempty"`

	AssignedTeam    *int           `json:"assignedTeam"`
	AssignedSlot    string         `json:"assignedSlot,omitempty"`
	AssignedMembers []string       `json:"assignedMembers"`
	Status          WorkflowStatus `json:"status"`

	PreviousStatus  LeadStatus `json:"previousStatus,omitempty"`
	StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
	StatusChangedBy string     `json:"statusChangedBy,omitempty"`

	ScheduledTeam     string `json:"scheduledTeam,omitempty"`
	ScheduledTimeSlot string `json:"scheduledTimeSlot,omitempty"`

	DateDegraded    bool `json:"dateDegraded,omitempty"`
	MissingFromFeed bool `json:"missingFromFeed,omitempty"`
}

// StatusChange records one lead status transition detected during a sync.
type StatusChange struct {
	ID         string     `json:"id"`
	ClientName string     `json:"clientName"`
	From       LeadStatus `json:"from"`
	To         LeadStatus `json:"to"`
	At         time.Time  `json:"at"`
}

// Task is a manually created schedule item that is not backed by the feed.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Type         string         `json:"type"`
	Date         string         `json:"date"`
	Time         string         `json:"time"`
	AssignedTeam *int           `json:"assignedTeam"`
	AssignedSlot string         `json:"assignedSlot,omitempty"`
	Status       WorkflowStatus `json:"status"`
	CreatedBy    string         `json:"createdBy"`
	Notes        string         `json:"notes,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Warning describes a data-quality problem found while parsing or merging.
// Warnings never block a sync; they are logged and forwarded to the notifier.
type Warning struct {
	RecordID string `json:"recordId,omitempty"`
	RowIndex int    `json:"rowIndex,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

const (
	WarnDateDegraded   = "date_degraded"
	WarnTeamUnresolved = "team_unresolved"
	WarnInvalidSlot    = "invalid_slot"
	WarnSlotConflict   = "slot_conflict"
	WarnUnknownStatus  = "unknown_status"
)

// HasAssignment reports whether the request currently occupies a schedule cell.
func (r DemoRequest) HasAssignment() bool {
	return r.AssignedTeam != nil && r.AssignedSlot != ""
}

// MatchKey is the case-insensitive name+email pair used to match feed rows
// across syncs when ids disagree.
func (r DemoRequest) MatchKey() string {
	return MatchKey(r.ClientName, r.ClientEmail)
}

// NaturalKey is the full (name, email, mobile) identity used by the override store.
func (r DemoRequest) NaturalKey() string {
	return NaturalKey(r.ClientName, r.ClientEmail, r.ClientMobile)
}

var nonDigits = regexp.MustCompile(`\D+`)

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// MatchKey returns "" when both parts are blank so that anonymous rows never match.
func MatchKey(name, email string) string {
	n, e := normalizeKeyPart(name), normalizeKeyPart(email)
	if n == "" && e == "" {
		return ""
	}
	return n + "|" + e
}

func NaturalKey(name, email, mobile string) string {
	base := MatchKey(name, email)
	digits := nonDigits.ReplaceAllString(mobile, "")
	if base == "" && digits == "" {
		return ""
	}
	return base + "|" + digits
}

// IntPtr is a small helper for optional team numbers.
func IntPtr(v int) *int {
	return &v
}
