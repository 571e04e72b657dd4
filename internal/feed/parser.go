package feed

import (
	"fmt"
	"strconv"
	"time"

	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/resolution"
	"kitchen_demo_sync/internal/slots"

	"github.com/rs/zerolog/log"
)

// Parser turns raw spreadsheet rows into FeedRecords and fresh DemoRequests.
type Parser struct {
	roster *resolution.Roster
	now    func() time.Time
}

func NewParser(roster *resolution.Roster, now func() time.Time) *Parser {
	if roster == nil {
		roster = resolution.DefaultRoster()
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{roster: roster, now: now}
}

// RequestID derives the id given to a row the first time it is seen.
func RequestID(rowIndex int) string {
	return fmt.Sprintf("demo-%d", rowIndex)
}

// Parse decodes one row. ok is false for non-records: rows with neither a
// client name nor an assignee, such as blank trailing rows.
func (p *Parser) Parse(row []string, rowIndex int) (rec model.FeedRecord, warnings []model.Warning, ok bool) {
	rec = bindRow(row, rowIndex)
	if rec.ClientName == "" && rec.Assignee == "" {
		log.Debug().
			Int("row", rowIndex).
			Int("columns", len(row)).
			Msg("Skipping row without client name or assignee")
		return model.FeedRecord{}, nil, false
	}

	date := DecodeDemoDate(rec.DemoDateRaw, p.now())
	rec.DemoDate = date.Date
	rec.DemoTime = date.Display
	rec.DemoClock = date.Clock
	rec.DateDegraded = date.Degraded
	if date.Degraded {
		log.Warn().
			Int("row", rowIndex).
			Str("demo_date", rec.DemoDateRaw).
			Msg("Could not parse demo date, falling back to today")
		warnings = append(warnings, model.Warning{
			RecordID: RequestID(rowIndex),
			RowIndex: rowIndex,
			Kind:     model.WarnDateDegraded,
			Message:  fmt.Sprintf("unparseable demo date %q", rec.DemoDateRaw),
		})
	}

	rec.Assignment = DecodeAssignment(rec.AssignmentRaw)
	return rec, warnings, true
}

// ToRequest builds the fresh DemoRequest for a record. The id is row-derived;
// the reconciler swaps in the stable id when it recognizes the row.
func (p *Parser) ToRequest(rec model.FeedRecord) (model.DemoRequest, []model.Warning) {
	req := model.DemoRequest{
		ID:           RequestID(rec.RowIndex),
		RowIndex:     rec.RowIndex,
		ClientName:   rec.ClientName,
		ClientEmail:  rec.ClientEmail,
		ClientMobile: rec.ClientMobile,
		Assignee:     rec.Assignee,
		SalesRep:     rec.SalesRep,
		LeadStatus:   resolution.NormalizeLeadStatus(rec.LeadStatusRaw),
		DemoDate:     rec.DemoDate,
		DemoTime:     rec.DemoTime,
		Recipes:      SplitRecipes(rec.RecipesRaw),
		MediaLink:    rec.MediaLink,
		DateDegraded: rec.DateDegraded,
	}

	warnings := p.applyAssignment(&req, rec)
	if _, known := resolution.LookupLeadStatus(rec.LeadStatusRaw); !known && rec.LeadStatusRaw != "" {
		warnings = append(warnings, model.Warning{
			RecordID: req.ID,
			RowIndex: rec.RowIndex,
			Kind:     model.WarnUnknownStatus,
			Message:  fmt.Sprintf("unrecognized lead status %q", rec.LeadStatusRaw),
		})
	}

	req.Status = resolution.NormalizeWorkflowStatus(rec.StatusRaw)
	if req.Status == "" {
		req.Status = model.StatusPending
		if req.HasAssignment() {
			req.Status = model.StatusAssigned
		}
	}
	req.ScheduledTeam, req.ScheduledTimeSlot = p.roster.Describe(req.AssignedTeam, req.AssignedSlot)
	return req, warnings
}

// applyAssignment fills team, slot and members. Persisted trailing columns win
// over the packed assignment cell because the dashboard wrote them.
func (p *Parser) applyAssignment(req *model.DemoRequest, rec model.FeedRecord) []model.Warning {
	var warnings []model.Warning
	warn := func(kind, msg string) {
		log.Warn().Int("row", rec.RowIndex).Str("kind", kind).Msg(msg)
		warnings = append(warnings, model.Warning{RecordID: req.ID, RowIndex: rec.RowIndex, Kind: kind, Message: msg})
	}

	if team, err := strconv.Atoi(rec.AssignedTeamRaw); err == nil && resolution.ValidTeam(team) {
		req.AssignedTeam = model.IntPtr(team)
		req.AssignedMembers = p.roster.Members(team)
		if key, ok := slots.Resolve(rec.AssignedSlotRaw, rec.DemoDate); ok {
			req.AssignedSlot = key
		} else if rec.AssignedSlotRaw != "" {
			warn(model.WarnInvalidSlot, fmt.Sprintf("invalid assigned slot %q", rec.AssignedSlotRaw))
		}
		if req.AssignedSlot != "" {
			return warnings
		}
	}

	a := rec.Assignment
	if !a.IsAssigned() {
		return warnings
	}

	if len(a.Names) > 0 {
		req.AssignedMembers = append([]string(nil), a.Names...)
	}

	if req.AssignedTeam == nil {
		if team, ok := p.roster.ResolveTeam(a.Names); ok {
			req.AssignedTeam = model.IntPtr(team)
		} else if a.Kind == model.Legacy && resolution.ValidTeam(a.GridCol+1) {
			req.AssignedTeam = model.IntPtr(a.GridCol + 1)
		} else {
			warn(model.WarnTeamUnresolved, fmt.Sprintf("no team matches %v", a.Names))
		}
	}

	switch a.Kind {
	case model.ByNamesAndSlot, model.Legacy:
		if key, ok := slots.Resolve(a.SlotRaw, rec.DemoDate); ok {
			req.AssignedSlot = key
		} else if a.Kind == model.Legacy && a.GridRow >= 0 && a.GridRow < len(slots.Times) && rec.DemoDate != "" {
			req.AssignedSlot = slots.Key(rec.DemoDate, slots.Times[a.GridRow])
		} else {
			warn(model.WarnInvalidSlot, fmt.Sprintf("unrecognized slot %q", a.SlotRaw))
		}
	case model.ByNames:
		// Names only: place the team in the window holding the demo time.
		if !rec.DateDegraded && rec.DemoClock != "" {
			if key, ok := slots.Resolve(rec.DemoClock, rec.DemoDate); ok {
				req.AssignedSlot = key
			}
		}
	}

	if req.AssignedTeam == nil {
		req.AssignedSlot = ""
	}
	return warnings
}

// ParseRows parses a full sheet. Row 0 is the header and is skipped.
func (p *Parser) ParseRows(rows [][]string) ([]model.DemoRequest, []model.Warning) {
	log.Debug().Int("rows", len(rows)).Msg("Parsing feed rows")

	var (
		requests []model.DemoRequest
		warnings []model.Warning
	)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec, parseWarnings, ok := p.Parse(row, i)
		if !ok {
			continue
		}
		req, assignWarnings := p.ToRequest(rec)
		requests = append(requests, req)
		warnings = append(warnings, parseWarnings...)
		warnings = append(warnings, assignWarnings...)
	}

	log.Debug().
		Int("total_rows", len(rows)).
		Int("parsed_requests", len(requests)).
		Int("warnings", len(warnings)).
		Msg("Finished parsing feed rows")
	return requests, warnings
}
