package providers

import (
	"context"

	"kitchen_demo_sync/internal/sheets"
)

// SheetsSource reads the feed through the Google Sheets API.
type SheetsSource struct {
	client *sheets.Client
	cfg    sheets.Config
}

func NewSheetsSource(client *sheets.Client, cfg sheets.Config) *SheetsSource {
	return &SheetsSource{client: client, cfg: cfg}
}

func (s *SheetsSource) Name() string {
	return "sheets:" + s.cfg.SpreadsheetID
}

func (s *SheetsSource) FetchRows(ctx context.Context) ([][]string, error) {
	return sheets.ReadFeedRows(ctx, s.client, s.cfg)
}
