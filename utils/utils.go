package utils

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
	logLevel   slog.LevelVar
	idSequence atomic.Uint32
)

// GetLogger returns the process-wide structured logger. The initial level is
// taken from LOG_LEVEL (debug, info, warn, error).
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logLevel.Set(parseLevel(os.Getenv("LOG_LEVEL")))
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))
	})
	return logger
}

// SetLogLevel changes the level of the process-wide logger.
func SetLogLevel(level string) {
	GetLogger()
	logLevel.Set(parseLevel(level))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetEnv reads an environment variable, returning fallback when it is unset or empty.
func GetEnv(key string, fallback ...string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

func CreateFolder(folderPath string) error {
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		return fmt.Errorf("error creating folder %s: %w", folderPath, err)
	}
	return nil
}

// GenerateUniqueID returns a time-ordered identifier suitable for history rows.
// A per-process sequence keeps IDs distinct within the same clock tick.
func GenerateUniqueID() string {
	return fmt.Sprintf("an_%x%04x", time.Now().UnixNano(), idSequence.Add(1)&0xffff)
}
