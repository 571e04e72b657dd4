package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"kitchen_demo_sync/internal/retry"
	"kitchen_demo_sync/internal/sheets"

	"github.com/rs/zerolog/log"
)

var ErrNoSources = errors.New("no feed sources configured")

// FeedSource yields the raw feed as rows of trimmed cells, header row first.
type FeedSource interface {
	Name() string
	FetchRows(ctx context.Context) ([][]string, error)
}

// FetchResult is the first successful payload and where it came from.
type FetchResult struct {
	Rows   [][]string
	Source string
}

// Policy tries candidate sources in order, each with its own bounded retry.
type Policy struct {
	Sources []FeedSource
	Retry   retry.Config
}

func (p Policy) Fetch(ctx context.Context) (FetchResult, error) {
	if len(p.Sources) == 0 {
		return FetchResult{}, ErrNoSources
	}

	var errs []error
	for _, src := range p.Sources {
		rows, err := retry.WithRetry(ctx, p.Retry, src.FetchRows)
		if err == nil {
			log.Debug().Str("source", src.Name()).Int("rows", len(rows)).Msg("Fetched feed")
			return FetchResult{Rows: rows, Source: src.Name()}, nil
		}
		if ctx.Err() != nil {
			return FetchResult{}, ctx.Err()
		}
		log.Warn().Err(err).Str("source", src.Name()).Msg("Feed source failed, trying next candidate")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return FetchResult{}, fmt.Errorf("all feed sources failed: %w", errors.Join(errs...))
}

// LoadSources reads FEED_URLS (comma-separated CSV export URLs) and, when a
// Sheets client is available, appends the configured spreadsheet as a
// last-resort source.
func LoadSources(httpClient *http.Client, sheetsClient *sheets.Client) []FeedSource {
	var sources []FeedSource
	for _, raw := range strings.Split(os.Getenv("FEED_URLS"), ",") {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}
		sources = append(sources, NewCSVExportSource(url, httpClient))
		log.Info().Str("url", url).Msg("Loaded CSV feed source")
	}

	if cfg, ok := sheets.ConfigFromEnv(); ok && sheetsClient != nil {
		sources = append(sources, NewSheetsSource(sheetsClient, cfg))
		log.Info().Str("range", cfg.Range).Msg("Loaded Sheets API feed source")
	}
	return sources
}
