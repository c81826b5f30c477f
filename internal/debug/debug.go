package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/jremap/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Verbose is set by the CLI --verbose flag
var Verbose = false

// logger is the process logger; components derive entries from it
var logger = newLogger(os.Stderr)

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects logger reconfiguration
var debugMutex sync.Mutex

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose toggles debug-level output
func SetVerbose(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	Verbose = enabled
	applyLevel()
}

func applyLevel() {
	if IsDebugEnabled() {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// SetDebugOutput sets a custom writer for log output.
// Pass nil to discard output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	if w == nil {
		w = io.Discard
	}
	logger.SetOutput(w)
	applyLevel()
}

// SetJSON switches the log formatter to JSON, for build systems that parse logs
func SetJSON(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	if enabled {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
}

// InitDebugLogFile initializes logging to a file.
// Returns the path to the log file, or an error if initialization fails.
// Call CloseDebugLog when done to ensure the file is properly closed.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "jremap-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	logger.SetOutput(file)
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		logger.SetOutput(os.Stderr)
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug mode is enabled by build flag, CLI or environment
func IsDebugEnabled() bool {
	if EnableDebug == "true" || Verbose {
		return true
	}

	v := strings.ToLower(os.Getenv("DEBUG"))
	return v == "1" || v == "true"
}

// raiseLevel lets EnableDebug/DEBUG flipped after startup take effect
func raiseLevel() {
	if logger.GetLevel() < logrus.DebugLevel {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// Logger returns a component-scoped log entry
func Logger(component string) *logrus.Entry {
	return logger.WithField("component", component)
}

// Log provides structured debug logging with component names
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	raiseLevel()
	Logger(component).Debugf(strings.TrimSuffix(format, "\n"), args...)
}

// LogMerge provides debug logging for the merge engine
func LogMerge(format string, args ...interface{}) {
	Log("MERGE", format, args...)
}

// LogMigrate provides debug logging for the field and inheritance migrators
func LogMigrate(format string, args ...interface{}) {
	Log("MIGRATE", format, args...)
}

// LogRemap provides debug logging for the bytecode rename pass
func LogRemap(format string, args ...interface{}) {
	Log("REMAP", format, args...)
}

// LogCache provides debug logging for cache hits and invalidations
func LogCache(format string, args ...interface{}) {
	Log("CACHE", format, args...)
}
