package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadFeedRows reads the configured range as trimmed string cells, header row
// included, the same shape a CSV export produces.
func ReadFeedRows(ctx context.Context, sheetsClient *Client, cfg Config) ([][]string, error) {
	log.Debug().Str("range", cfg.Range).Msg("Reading feed rows from Sheets API")
	values, err := sheetsClient.ReadRange(ctx, cfg.Range)
	if err != nil {
		return nil, err
	}
	rows := ToStringRows(values)
	log.Debug().Int("rows", len(rows)).Msg("Retrieved feed rows")
	return rows, nil
}

// ToStringRows converts API cell values to strings.
func ToStringRows(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i := range row {
			cells[i] = extractStringField(row, i)
		}
		rows = append(rows, cells)
	}
	return rows
}

// extractStringField safely extracts a string field from a row at the given index
func extractStringField(row []interface{}, index int) string {
	if len(row) > index && row[index] != nil {
		return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
	}
	return ""
}
