package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"kitchen_demo_sync/internal/feed"
	"kitchen_demo_sync/internal/model"
	"kitchen_demo_sync/internal/retry"

	"github.com/rs/zerolog/log"
)

// ErrRowMoved means the sheet row no longer holds the request being written,
// usually because rows were inserted or sorted since the last sync.
var ErrRowMoved = errors.New("sheet row no longer matches request")

// AssignmentWriter mirrors placements into the trailing Assigned Team,
// Assigned Slot and Status columns so the next feed read carries them.
// It assumes the configured range starts at row 1.
type AssignmentWriter struct {
	client *Client
	cfg    Config
	retry  retry.Config
}

func NewAssignmentWriter(client *Client, cfg Config, rc retry.Config) *AssignmentWriter {
	return &AssignmentWriter{client: client, cfg: cfg, retry: rc}
}

// AssignmentCells renders the trailing column values for a request.
func AssignmentCells(req model.DemoRequest) []interface{} {
	team := ""
	if req.AssignedTeam != nil {
		team = strconv.Itoa(*req.AssignedTeam)
	}
	return []interface{}{team, req.AssignedSlot, string(req.Status)}
}

func (w *AssignmentWriter) WriteAssignment(ctx context.Context, req model.DemoRequest) error {
	if req.MissingFromFeed || req.RowIndex <= 0 {
		log.Debug().Str("id", req.ID).Msg("Request has no live sheet row, skipping write-back")
		return nil
	}

	sheetName := w.cfg.SheetName()
	sheetRow := req.RowIndex + 1

	if err := w.confirmRow(ctx, sheetName, sheetRow, req); err != nil {
		return err
	}

	cellRange := fmt.Sprintf("%s!%s%d:%s%d", sheetName,
		feed.ColumnLetter(feed.ColAssignedTeam), sheetRow,
		feed.ColumnLetter(feed.ColStatus), sheetRow)
	values := [][]interface{}{AssignmentCells(req)}

	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.client.WriteRange(ctx, cellRange, values)
	})
	if err != nil {
		log.Error().Err(err).Str("id", req.ID).Int("row", sheetRow).Msg("Failed to write assignment columns")
		return err
	}

	log.Info().
		Str("id", req.ID).
		Int("row", sheetRow).
		Str("range", cellRange).
		Msg("Wrote assignment back to sheet")
	return nil
}

// confirmRow reads the name and email cells of the target row and compares
// them with the request before anything is written.
func (w *AssignmentWriter) confirmRow(ctx context.Context, sheetName string, sheetRow int, req model.DemoRequest) error {
	identRange := fmt.Sprintf("%s!%s%d:%s%d", sheetName,
		feed.ColumnLetter(feed.ColFullName), sheetRow,
		feed.ColumnLetter(feed.ColEmail), sheetRow)

	values, err := retry.WithRetry(ctx, w.retry, func(ctx context.Context) ([][]interface{}, error) {
		return w.client.ReadRange(ctx, identRange)
	})
	if err != nil {
		return err
	}

	var name, email string
	if rows := ToStringRows(values); len(rows) > 0 {
		name = extractCell(rows[0], 0)
		email = extractCell(rows[0], 1)
	}
	if model.MatchKey(name, email) != req.MatchKey() {
		log.Warn().
			Str("id", req.ID).
			Int("row", sheetRow).
			Str("sheet_name", name).
			Msg("Sheet row changed since last sync, skipping write-back")
		return fmt.Errorf("%w: %s at row %d", ErrRowMoved, req.ID, sheetRow)
	}
	return nil
}

func extractCell(row []string, index int) string {
	if index < len(row) {
		return row[index]
	}
	return ""
}
