package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupEnvironment loads .env (or ENV_FILE) into the process environment and
// configures the global logger from ENV and LOGLEVEL.
func SetupEnvironment() {
	envFile := GetEnvWithDefault("ENV_FILE", ".env")
	err := godotenv.Load(envFile)

	production := os.Getenv("ENV") == "production"
	ConfigureLogging(os.Stderr, production, os.Getenv("LOGLEVEL"))

	// Reported only now so the message goes through the configured logger.
	if err != nil {
		log.Debug().Str("file", envFile).Msg("No env file loaded, using process environment")
		return
	}
	log.Debug().Str("file", envFile).Msg("Loaded environment file")
}

// ConfigureLogging writes JSON with unix timestamps in production and a
// console format otherwise. An empty level means warn in production and info
// elsewhere; "warning" is accepted as an alias.
func ConfigureLogging(out io.Writer, production bool, level string) zerolog.Level {
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	parsed, ok := parseLevel(level, production)
	zerolog.SetGlobalLevel(parsed)
	if !ok {
		log.Warn().Str("loglevel", level).Msg("Unknown LOGLEVEL, defaulting to info")
	}
	return parsed
}

func parseLevel(raw string, production bool) (zerolog.Level, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		if production {
			return zerolog.WarnLevel, true
		}
		return zerolog.InfoLevel, true
	case "warning":
		return zerolog.WarnLevel, true
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, false
	}
	return level, true
}
