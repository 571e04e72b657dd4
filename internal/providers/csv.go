package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kitchen_demo_sync/internal/feed"
	"kitchen_demo_sync/internal/retry"
)

var (
	ErrHTMLPayload = errors.New("feed returned an HTML page instead of CSV")
	ErrNotCSV      = errors.New("feed payload is not comma separated")
)

const maxFeedBytes = 16 << 20

// CSVExportSource downloads a published sheet's CSV export.
type CSVExportSource struct {
	url    string
	client *http.Client
}

func NewCSVExportSource(url string, client *http.Client) *CSVExportSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CSVExportSource{url: url, client: client}
}

func (s *CSVExportSource) Name() string {
	return s.url
}

func (s *CSVExportSource) FetchRows(ctx context.Context) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(fmt.Errorf("feed returned status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}
	text := string(body)

	if looksLikeHTML(resp.Header.Get("Content-Type"), text) {
		return nil, retry.Permanent(ErrHTMLPayload)
	}
	if !strings.Contains(text, ",") {
		return nil, retry.Permanent(ErrNotCSV)
	}

	rows, err := feed.ParseCSV(text)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return rows, nil
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html") || strings.Contains(head, "<head")
}
