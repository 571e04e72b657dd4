package feed

import (
	"testing"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/resolution"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 8, 20, 8, 0, 0, 0, time.UTC)

func testParser() *Parser {
	return NewParser(resolution.DefaultRoster(), func() time.Time { return fixedNow })
}

// row builds a sheet row from column => value pairs.
func row(cells map[int]string) []string {
	out := make([]string, ColumnCount)
	for col, v := range cells {
		out[col] = v
	}
	return out
}

func TestDecodeDemoDate(t *testing.T) {
	tests := []struct {
		raw      string
		date     string
		display  string
		degraded bool
	}{
		{"29/08/25;12:00", "2025-08-29", "12:00 PM", false},
		{"29/08/2025 15:00", "2025-08-29", "3:00 PM", false},
		{"29/08/2025", "2025-08-29", DefaultDisplayTime, false},
		{"2025-08-29T09:30", "2025-08-29", "9:30 AM", false},
		{"2025-08-29", "2025-08-29", DefaultDisplayTime, false},
		{"August 29, 2025", "2025-08-29", DefaultDisplayTime, false},
		{"Aug 29, 2025 4:00 PM", "2025-08-29", "4:00 PM", false},
		{"31/02/2025", "2025-08-20", DefaultDisplayTime, true},
		{"next tuesday", "2025-08-20", DefaultDisplayTime, true},
		{"", "2025-08-20", DefaultDisplayTime, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := DecodeDemoDate(tt.raw, fixedNow)
			assert.Equal(t, tt.date, got.Date)
			assert.Equal(t, tt.display, got.Display)
			assert.Equal(t, tt.degraded, got.Degraded)
		})
	}
}

func TestDecodeAssignment(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Assignment
	}{
		{
			"Scheduled: Aarav, Meera at 9:00 AM - 11:00 AM (Grid: 0,2)",
			model.Assignment{Kind: model.Legacy, Names: []string{"Aarav", "Meera"}, SlotRaw: "9:00 AM - 11:00 AM", GridRow: 0, GridCol: 2},
		},
		{
			"Aarav, Meera | 11:00",
			model.Assignment{Kind: model.ByNamesAndSlot, Names: []string{"Aarav", "Meera"}, SlotRaw: "11:00"},
		},
		{
			"Kabir & Ishita",
			model.Assignment{Kind: model.ByNames, Names: []string{"Kabir", "Ishita"}},
		},
		{"TBD", model.Assignment{}},
		{"  ", model.Assignment{}},
		{"n/a | ", model.Assignment{}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, DecodeAssignment(tt.raw)); diff != "" {
				t.Errorf("DecodeAssignment(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestSplitRecipes(t *testing.T) {
	assert.Equal(t, []string{"Paneer Tikka", "Dal", "Naan"}, SplitRecipes("Paneer Tikka, Dal;\nNaan, "))
	assert.Equal(t, []string{}, SplitRecipes(""))
}

func TestParseCSV(t *testing.T) {
	text := "\ufeffFull Name,Email,Recipes\n" +
		"\"Doe, Jane\",jane@example.com,\"Dal,\nNaan\"\n" +
		"Short Row\n"

	rows, err := ParseCSV(text)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Full Name", rows[0][0])
	assert.Equal(t, []string{"Doe, Jane", "jane@example.com", "Dal,\nNaan"}, rows[1])
	assert.Equal(t, []string{"Short Row"}, rows[2])

	_, err = ParseCSV("  \n")
	assert.ErrorIs(t, err, ErrEmptyFeed)
}

func TestHeadersAndLetters(t *testing.T) {
	headers := Headers()
	require.Len(t, headers, ColumnCount)
	assert.Equal(t, "Full Name", headers[ColFullName])
	assert.Equal(t, "Status", headers[ColStatus])
	assert.Equal(t, "A", ColumnLetter(ColFullName))
	assert.Equal(t, "K", ColumnLetter(ColAssignedTeam))
	assert.Equal(t, "M", ColumnLetter(ColStatus))
}

func TestParseSkipsAnonymousRows(t *testing.T) {
	p := testParser()
	_, _, ok := p.Parse(row(map[int]string{ColEmail: "x@example.com"}), 4)
	assert.False(t, ok)

	rec, _, ok := p.Parse(row(map[int]string{ColAssignee: "Kabir"}), 5)
	require.True(t, ok, "assignee alone is enough")
	assert.Equal(t, 5, rec.RowIndex)
}

func TestToRequestNamesAndSlot(t *testing.T) {
	p := testParser()
	rec, warnings, ok := p.Parse(row(map[int]string{
		ColFullName:       "Jane Doe",
		ColEmail:          "jane@example.com",
		ColLeadStatus:     "Demo Planned",
		ColDemoDate:       "29/08/25;12:00",
		ColRecipes:        "Dal, Naan",
		ColTeamAssignment: "Meera | 11:00",
	}), 1)
	require.True(t, ok)
	assert.Empty(t, warnings)

	req, warnings := p.ToRequest(rec)
	assert.Empty(t, warnings)
	assert.Equal(t, "demo-1", req.ID)
	assert.Equal(t, 1, req.RowIndex)
	assert.Equal(t, "2025-08-29", req.DemoDate)
	assert.Equal(t, "12:00 PM", req.DemoTime)
	assert.Equal(t, model.LeadPlanned, req.LeadStatus)
	require.NotNil(t, req.AssignedTeam)
	assert.Equal(t, 1, *req.AssignedTeam)
	assert.Equal(t, "2025-08-29-11:00", req.AssignedSlot)
	assert.Equal(t, []string{"Meera"}, req.AssignedMembers)
	assert.Equal(t, model.StatusAssigned, req.Status)
	assert.Equal(t, "Team 1", req.ScheduledTeam)
	assert.Equal(t, "11:00 AM - 1:00 PM", req.ScheduledTimeSlot)
	assert.Equal(t, []string{"Dal", "Naan"}, req.Recipes)
}

func TestToRequestTrailingColumnsWin(t *testing.T) {
	p := testParser()
	rec, _, ok := p.Parse(row(map[int]string{
		ColFullName:       "Sam Lee",
		ColDemoDate:       "2025-08-29",
		ColTeamAssignment: "Meera | 11:00",
		ColAssignedTeam:   "4",
		ColAssignedSlot:   "3:00 PM",
		ColStatus:         "In Progress",
	}), 2)
	require.True(t, ok)

	req, warnings := p.ToRequest(rec)
	assert.Empty(t, warnings)
	require.NotNil(t, req.AssignedTeam)
	assert.Equal(t, 4, *req.AssignedTeam)
	assert.Equal(t, "2025-08-29-15:00", req.AssignedSlot)
	assert.Equal(t, []string{"Vikram", "Sana"}, req.AssignedMembers)
	assert.Equal(t, model.StatusInProgress, req.Status)
}

func TestToRequestNamesOnlyUsesDemoTime(t *testing.T) {
	p := testParser()
	rec, _, ok := p.Parse(row(map[int]string{
		ColFullName:       "Ana",
		ColDemoDate:       "29/08/25;13:30",
		ColTeamAssignment: "Rohan",
	}), 3)
	require.True(t, ok)

	req, _ := p.ToRequest(rec)
	require.NotNil(t, req.AssignedTeam)
	assert.Equal(t, 3, *req.AssignedTeam)
	assert.Equal(t, "2025-08-29-13:00", req.AssignedSlot)
}

func TestToRequestLegacyGridFallback(t *testing.T) {
	p := testParser()
	rec, _, ok := p.Parse(row(map[int]string{
		ColFullName:       "Old Row",
		ColDemoDate:       "2025-08-29",
		ColTeamAssignment: "Scheduled: Somebody at whenever (Grid: 4,1)",
	}), 6)
	require.True(t, ok)

	req, _ := p.ToRequest(rec)
	require.NotNil(t, req.AssignedTeam)
	assert.Equal(t, 2, *req.AssignedTeam, "grid column picks the team")
	assert.Equal(t, "2025-08-29-17:00", req.AssignedSlot, "grid row picks the slot")
}

func TestToRequestUnresolvedTeamDropsSlot(t *testing.T) {
	p := testParser()
	rec, _, ok := p.Parse(row(map[int]string{
		ColFullName:       "Nobody Known",
		ColDemoDate:       "2025-08-29",
		ColTeamAssignment: "Zed | 11:00",
	}), 7)
	require.True(t, ok)

	req, warnings := p.ToRequest(rec)
	assert.Nil(t, req.AssignedTeam)
	assert.Empty(t, req.AssignedSlot)
	assert.Equal(t, model.StatusPending, req.Status)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnTeamUnresolved, warnings[0].Kind)
}

func TestParseRows(t *testing.T) {
	p := testParser()
	rows := [][]string{
		Headers(),
		row(map[int]string{ColFullName: "Jane", ColDemoDate: "not a date", ColLeadStatus: "Hot lead"}),
		{},
		row(map[int]string{ColFullName: "Sam", ColDemoDate: "2025-08-30", ColLeadStatus: "Demo Cancelled"}),
	}

	requests, warnings := p.ParseRows(rows)
	require.Len(t, requests, 2)
	assert.Equal(t, "demo-1", requests[0].ID)
	assert.True(t, requests[0].DateDegraded)
	assert.Equal(t, "2025-08-20", requests[0].DemoDate)
	assert.Equal(t, "demo-3", requests[1].ID)
	assert.Equal(t, model.LeadCancelled, requests[1].LeadStatus)

	kinds := make([]string, 0, len(warnings))
	for _, w := range warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.ElementsMatch(t, []string{model.WarnDateDegraded, model.WarnUnknownStatus}, kinds)
}
