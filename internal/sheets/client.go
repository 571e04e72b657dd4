package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client is bound to the one intake spreadsheet a deployment reads.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewClient(ctx context.Context, spreadsheetID, credentialsFile string) (*Client, error) {
	return NewClientWithOptions(ctx, spreadsheetID, option.WithCredentialsFile(credentialsFile))
}

// NewClientWithOptions builds a client from arbitrary API options, such as an
// endpoint override in tests.
func NewClientWithOptions(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// ReadRange returns the cells as the sheet displays them, so dates arrive in
// the same text form a CSV export would carry.
func (c *Client) ReadRange(ctx context.Context, a1 string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, a1).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a1, err)
	}

	return resp.Values, nil
}

// WriteRange stores values verbatim. RAW keeps slot keys such as
// "2025-08-29-13:00" from being reinterpreted as dates.
func (c *Client) WriteRange(ctx context.Context, a1 string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Range:          a1,
		MajorDimension: "ROWS",
		Values:         values,
	}

	_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, a1, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", a1, err)
	}

	return nil
}
