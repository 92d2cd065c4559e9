package log

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"ollamabridge/internal/core"
)

// LogLevel defines the severity level for log messages.
type LogLevel int

// Log level constants.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a LOG_LEVEL value to a level. Unknown values yield INFO and false.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, true
	case "info":
		return INFO, true
	case "warn", "warning":
		return WARN, true
	case "error":
		return ERROR, true
	}
	return INFO, false
}

// AppLogger is the application logger implementation.
type AppLogger struct {
	logger     *log.Logger
	minLevel   LogLevel
	fileHandle *os.File
	mu         sync.RWMutex
}

// NewAppLogger creates a logger writing entries at or above minLevel to output.
func NewAppLogger(output io.Writer, minLevel LogLevel) *AppLogger {
	return &AppLogger{
		logger:   log.New(output, "", log.LstdFlags),
		minLevel: minLevel,
	}
}

// Enabled reports whether entries at level are written.
func (l *AppLogger) Enabled(level LogLevel) bool {
	return l != nil && level >= l.minLevel
}

func (l *AppLogger) logf(level LogLevel, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Printf("["+level.String()+"] "+format, args...)
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) { l.logf(DEBUG, format, args...) }

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) { l.logf(INFO, format, args...) }

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) { l.logf(WARN, format, args...) }

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) { l.logf(ERROR, format, args...) }

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l != nil {
		l.logger.Fatalf("[FATAL] "+format, args...)
	} else {
		log.Fatalf("[FATAL] "+format, args...)
	}
}

// Close safely closes log file handle.
func (l *AppLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		l.logger.SetOutput(os.Stdout)
		return err
	}
	return nil
}

// containsPathTraversal reports whether path has a parent-directory segment.
func containsPathTraversal(path string) bool {
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return true
		}
	}
	return false
}

// createLogFileOutput opens LOG_FILE for appending, falling back to stdout on failure.
func createLogFileOutput() (io.Writer, *os.File) {
	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if logFile == "" {
		return os.Stdout, nil
	}

	if len(logFile) > core.MaxDebugFilePathLength {
		log.Printf("[WARN] LOG_FILE path too long, falling back to stdout")
		return os.Stdout, nil
	}

	if containsPathTraversal(logFile) {
		log.Printf("[WARN] LOG_FILE contains path traversal, falling back to stdout")
		return os.Stdout, nil
	}

	//nolint:gosec // G304: path from env var, validated above
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, core.FilePermissionReadWrite)
	if err != nil {
		log.Printf("[WARN] Failed to open LOG_FILE '%s': %v, falling back to stdout", logFile, err)
		return os.Stdout, nil
	}

	return file, file
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// levelFromEnv resolves the minimum level: LOG_LEVEL wins, GIN_MODE=debug implies DEBUG.
func levelFromEnv() LogLevel {
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, ok := ParseLevel(raw)
		if !ok {
			log.Printf("[WARN] Unknown LOG_LEVEL '%s', using INFO", raw)
		}
		return level
	}
	if IsDebug() {
		return DEBUG
	}
	return INFO
}

// CreateLogger creates a logger instance (for dependency injection).
func CreateLogger() *AppLogger {
	output, fileHandle := createLogFileOutput()

	return &AppLogger{
		logger:     log.New(output, "", log.LstdFlags),
		minLevel:   levelFromEnv(),
		fileHandle: fileHandle,
	}
}

var _ core.Logger = (*AppLogger)(nil)
