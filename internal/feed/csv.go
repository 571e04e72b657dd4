package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyFeed = errors.New("feed payload is empty")

// ParseCSV splits an exported sheet into rows of trimmed cells. Quoted cells
// may contain commas and newlines; rows may have differing widths.
func ParseCSV(text string) ([][]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFeed
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed csv: %w", err)
		}
		row := make([]string, len(record))
		for i, cell := range record {
			row[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
