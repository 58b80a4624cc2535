package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing to stderr. Human-readable
// console output is used when attached to a terminal, JSON otherwise.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		level := parseLevel(os.Getenv("DAILYBRIEF_LOG_LEVEL"))

		var logger zerolog.Logger
		if fi, err := os.Stderr.Stat(); err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
			logger = zerolog.New(writer)
		} else {
			logger = zerolog.New(os.Stderr)
		}

		defaultLogger = logger.Level(level).With().Timestamp().Logger()
	})
}

// Get returns the initialized default logger.
// It calls Init() to ensure the logger is ready before returning it.
func Get() zerolog.Logger {
	Init()
	return defaultLogger
}

// SetLevel adjusts the default logger's level. Used once configuration
// is loaded, since Init() runs before config is available.
func SetLevel(level string) {
	Init()
	defaultLogger = defaultLogger.Level(parseLevel(level))
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
