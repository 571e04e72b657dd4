package sheets

import (
	"os"
	"strings"
)

const defaultRange = "Sheet1!A1:M"

// Config locates the intake sheet.
type Config struct {
	SpreadsheetID string
	Range         string
}

// ConfigFromEnv reads SPREADSHEET_ID and SPREADSHEET_RANGE. ok is false when
// no spreadsheet is configured, in which case the Sheets API is not used.
func ConfigFromEnv() (cfg Config, ok bool) {
	cfg = Config{
		SpreadsheetID: strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		Range:         getEnvWithDefault("SPREADSHEET_RANGE", defaultRange),
	}
	return cfg, cfg.SpreadsheetID != ""
}

// SheetName is the tab part of the range ("Sheet1!A1:M" => "Sheet1").
func (c Config) SheetName() string {
	return strings.Split(c.Range, "!")[0]
}

// getEnvWithDefault fetches an environment variable with a default fallback.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
