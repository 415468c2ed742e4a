package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ParseLevel converts a configuration string to a slog.Level.
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// SetupLogger builds the process logger. Console output is always enabled;
// when logDir is non-empty a daily rotating JSON log file is added.
func SetupLogger(logDir string, level string) *slog.Logger {
	lvl := ParseLevel(level)

	if logDir == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fallback().Warn("Failed to create log directory, falling back to console only",
			"log_dir", logDir, "error", err)
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}

	rw := NewRotatingWriter(logDir, 28) // keep four weeks of daily files
	out := io.MultiWriter(os.Stdout, rw)
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}

// RotatingWriter writes to one log file per UTC day and removes files older
// than the retention period when it rotates.
type RotatingWriter struct {
	logDir        string
	retentionDays int

	mu         sync.Mutex
	current    *os.File
	currentDay string
}

// NewRotatingWriter creates a writer that rotates daily under logDir.
func NewRotatingWriter(logDir string, retentionDays int) *RotatingWriter {
	return &RotatingWriter{logDir: logDir, retentionDays: retentionDays}
}

// Write implements io.Writer. Rotation happens lazily on the first write of
// each day so there is no background goroutine to manage.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if rw.current == nil || day != rw.currentDay {
		if err := rw.rotate(day); err != nil {
			return 0, err
		}
	}
	return rw.current.Write(p)
}

// Close closes the current log file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.current == nil {
		return nil
	}
	err := rw.current.Close()
	rw.current = nil
	return err
}

func (rw *RotatingWriter) rotate(day string) error {
	if rw.current != nil {
		_ = rw.current.Close()
		rw.current = nil
	}

	path := filepath.Join(rw.logDir, fmt.Sprintf("app-%s.log", day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rw.current = f
	rw.currentDay = day
	rw.cleanupOldLogs()
	return nil
}

// cleanupOldLogs removes daily log files past the retention period. Errors
// are ignored: losing a cleanup pass is harmless, rotation retries tomorrow.
func (rw *RotatingWriter) cleanupOldLogs() {
	if rw.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -rw.retentionDays).Format("2006-01-02")
	matches, err := filepath.Glob(filepath.Join(rw.logDir, "app-*.log"))
	if err != nil {
		return
	}

	for _, path := range matches {
		base := filepath.Base(path)
		day := strings.TrimSuffix(strings.TrimPrefix(base, "app-"), ".log")
		if len(day) == len("2006-01-02") && day < cutoff {
			_ = os.Remove(path)
		}
	}
}
