package config

import (
	"time"

	"kitchen_demo_sync/internal/retry"
)

type ResilienceConfig struct {
	// FeedFetch is applied per feed source candidate.
	FeedFetch retry.Config
	// OverrideStore calls get one attempt; failure means "no override".
	OverrideStore retry.Config
	// SheetWrite mirrors assignments into the sheet's trailing columns.
	SheetWrite retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	FeedFetch: retry.Config{
		Name:       "feed fetch",
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   8 * time.Second,
		Timeout:    15 * time.Second,
	},
	OverrideStore: retry.Config{
		Name:       "override store",
		MaxRetries: 0,
		Timeout:    3 * time.Second,
	},
	SheetWrite: retry.Config{
		Name:       "sheet write",
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   8 * time.Second,
		Timeout:    10 * time.Second,
	},
}

// Sync cadence defaults.
const (
	DefaultSyncInterval = 2 * time.Minute
	DefaultSyncTimeout  = 90 * time.Second
)
