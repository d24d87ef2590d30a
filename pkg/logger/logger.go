package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Leveled logger shared by the publish service and the CLI.
// - backed by zerolog, writes JSON lines to stdout
// - provides Debug/Info/Warn/Error/Fatal variants and Init(level)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn", "warning":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	case "fatal":
		logger = logger.Level(zerolog.FatalLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// SetOutput redirects log output, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	lvl := logger.GetLevel()
	logger = newLogger(w).Level(lvl)
}

// Logger returns a copy of the underlying zerolog logger for structured fields.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debugf(format string, v ...interface{}) {
	l := Logger()
	l.Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	l := Logger()
	l.Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	l := Logger()
	l.Warn().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	l := Logger()
	l.Error().Msgf(format, v...)
}

// Fatalf logs regardless of level and exits.
func Fatalf(format string, v ...interface{}) {
	l := Logger()
	l.WithLevel(zerolog.FatalLevel).Msgf(format, v...)
	os.Exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	l := Logger()
	l.Info().Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	switch Logger().GetLevel() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return "debug"
	case zerolog.WarnLevel:
		return "warn"
	case zerolog.ErrorLevel:
		return "error"
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return "fatal"
	}
	return "info"
}
