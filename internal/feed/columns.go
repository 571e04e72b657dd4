package feed

import (
	"fmt"
	"strings"

	"kitchen_demo_sync/internal/model"
)

// Column positions of the intake spreadsheet. The trailing three columns are
// written back by the dashboard and are usually absent on fresh rows.
const (
	ColFullName = iota
	ColEmail
	ColPhone
	ColLeadStatus
	ColSalesRep
	ColAssignee
	ColDemoDate
	ColRecipes
	ColTeamAssignment
	ColMediaLink
	ColAssignedTeam
	ColAssignedSlot
	ColStatus
	ColumnCount
)

type columnBinding struct {
	header string
	set    func(rec *model.FeedRecord, value string)
}

// columns maps every spreadsheet position to the FeedRecord field it fills.
var columns = [ColumnCount]columnBinding{
	ColFullName:       {"Full Name", func(r *model.FeedRecord, v string) { r.ClientName = v }},
	ColEmail:          {"Email", func(r *model.FeedRecord, v string) { r.ClientEmail = v }},
	ColPhone:          {"Phone", func(r *model.FeedRecord, v string) { r.ClientMobile = v }},
	ColLeadStatus:     {"Lead Status", func(r *model.FeedRecord, v string) { r.LeadStatusRaw = v }},
	ColSalesRep:       {"Sales Rep", func(r *model.FeedRecord, v string) { r.SalesRep = v }},
	ColAssignee:       {"Assignee", func(r *model.FeedRecord, v string) { r.Assignee = v }},
	ColDemoDate:       {"Demo Date", func(r *model.FeedRecord, v string) { r.DemoDateRaw = v }},
	ColRecipes:        {"Recipes", func(r *model.FeedRecord, v string) { r.RecipesRaw = v }},
	ColTeamAssignment: {"Team Assignment", func(r *model.FeedRecord, v string) { r.AssignmentRaw = v }},
	ColMediaLink:      {"Media Link", func(r *model.FeedRecord, v string) { r.MediaLink = v }},
	ColAssignedTeam:   {"Assigned Team", func(r *model.FeedRecord, v string) { r.AssignedTeamRaw = v }},
	ColAssignedSlot:   {"Assigned Slot", func(r *model.FeedRecord, v string) { r.AssignedSlotRaw = v }},
	ColStatus:         {"Status", func(r *model.FeedRecord, v string) { r.StatusRaw = v }},
}

func init() {
	seen := make(map[string]bool, ColumnCount)
	for i, c := range columns {
		if c.set == nil || c.header == "" {
			panic(fmt.Sprintf("feed: column %d has no binding", i))
		}
		if seen[c.header] {
			panic(fmt.Sprintf("feed: duplicate column header %q", c.header))
		}
		seen[c.header] = true
	}
}

// Headers returns the expected header row, in column order.
func Headers() []string {
	out := make([]string, ColumnCount)
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// ColumnLetter returns the A1 column letter for a position (0 => "A").
func ColumnLetter(col int) string {
	return string(rune('A' + col))
}

// extractStringField safely extracts a trimmed cell at the given index.
func extractStringField(row []string, index int) string {
	if index < len(row) {
		return strings.TrimSpace(row[index])
	}
	return ""
}

func bindRow(row []string, rowIndex int) model.FeedRecord {
	rec := model.FeedRecord{RowIndex: rowIndex}
	for i, c := range columns {
		c.set(&rec, extractStringField(row, i))
	}
	return rec
}
