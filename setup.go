package main

import (
	"fmt"
	"os"

	"kitchen_demo_sync/internal/app"

	"github.com/spf13/pflag"
)

type flags struct {
	once   bool
	addr   string
	cache  string
	db     string
	roster string
}

// parseFlags reads the command line. Defaults come from the environment so the
// same binary runs unchanged under a .env file or a container.
func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("kitchen-demo-sync", pflag.ContinueOnError)
	fs.BoolVar(&f.once, "once", false, "run a single sync cycle and exit")
	fs.StringVar(&f.addr, "addr", app.GetEnvWithDefault("HTTP_ADDR", ":8080"), "dashboard API listen address")
	fs.StringVar(&f.cache, "cache", app.GetEnvWithDefault("CACHE_PATH", "data/schedule-cache.json"), "last-known-good cache file (empty disables)")
	fs.StringVar(&f.db, "db", os.Getenv("OVERRIDES_DB"), "SQLite override database (empty keeps overrides in memory)")
	fs.StringVar(&f.roster, "roster", os.Getenv("ROSTER_FILE"), "JSONC team roster file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kitchen-demo-sync [flags]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

// setupEnvironment loads .env and configures zerolog output and log level.
func setupEnvironment() {
	app.SetupEnvironment()
}
