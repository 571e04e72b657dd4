package app

import (
	"context"
	"os"
	"strconv"
	"time"

	"kitchen_demo_sync/internal/config"
	"kitchen_demo_sync/internal/notifications"
	"kitchen_demo_sync/internal/sheets"

	"github.com/rs/zerolog/log"
)

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDurationEnv parses a Go duration from the environment, falling back to
// defaultValue when unset or malformed.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", defaultValue).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

// GetIntEnv parses an integer from the environment with a default fallback.
func GetIntEnv(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Int("default", defaultValue).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

// InitializeSheetsClient creates the Google Sheets client when a spreadsheet
// is configured. It returns nil otherwise; the CSV export URLs then carry the
// feed on their own.
func InitializeSheetsClient(ctx context.Context) *sheets.Client {
	cfg, ok := sheets.ConfigFromEnv()
	if !ok {
		log.Debug().Msg("SPREADSHEET_ID not set, Sheets API disabled")
		return nil
	}
	credsFile := GetEnvWithDefault("GOOGLE_CREDENTIALS", "credentials.json")

	sheetsClient, err := sheets.NewClient(ctx, cfg.SpreadsheetID, credsFile)
	if err != nil {
		log.Error().Err(err).Str("credentials", credsFile).Msg("Failed to create sheets client, continuing without Sheets API")
		return nil
	}

	log.Debug().Msg("Sheets client initialized successfully")
	return sheetsClient
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient() *notifications.Client {
	enabled := GetEnvWithDefault("NTFY_ENABLED", "false") == "true"
	baseURL := GetEnvWithDefault("NTFY_URL", "https://ntfy.sh")
	topic := GetEnvWithDefault("NTFY_TOPIC", "kitchen-demos")
	batchMode := GetEnvWithDefault("NTFY_BATCH_MODE", "true") == "true"
	priority := GetEnvWithDefault("NTFY_PRIORITY", "default")
	maxRetries := GetIntEnv("NTFY_MAX_RETRIES", 3)
	baseDelay := GetDurationEnv("NTFY_BASE_DELAY", 1*time.Second)
	maxDelay := GetDurationEnv("NTFY_MAX_DELAY", 30*time.Second)

	log.Debug().
		Bool("enabled", enabled).
		Str("base_url", baseURL).
		Str("topic", topic).
		Bool("batch_mode", batchMode).
		Int("max_retries", maxRetries).
		Msg("Initializing notification client")

	client := notifications.NewClient(baseURL, topic, enabled, batchMode, priority, maxRetries, baseDelay, maxDelay)

	if enabled {
		log.Info().Str("topic", topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}

// SyncInterval reads SYNC_INTERVAL, e.g. "90s" or "5m".
func SyncInterval() time.Duration {
	return GetDurationEnv("SYNC_INTERVAL", config.DefaultSyncInterval)
}

// SyncTimeout reads SYNC_TIMEOUT, the bound on one whole cycle.
func SyncTimeout() time.Duration {
	return GetDurationEnv("SYNC_TIMEOUT", config.DefaultSyncTimeout)
}
