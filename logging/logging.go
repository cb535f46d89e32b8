// Package logging provides the process-wide logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	logger  = newLogger(os.Stderr, logrus.WarnLevel)
	logFile *os.File
	mu      sync.Mutex
)

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return l
}

// SetupLogger sets the log level and, when logFilePath is non-empty, redirects
// output to that file. Level names are those understood by logrus.
func SetupLogger(level string, logFilePath string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	mu.Lock()
	defer mu.Unlock()

	logger.SetLevel(lvl)
	if logFilePath == "" {
		return nil
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logger.SetOutput(f)
	logger.Infof("--- image-dedup log started at %s ---", time.Now().Format(time.RFC3339))
	return nil
}

// SetOutput redirects log output, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// CloseLogger closes the log file, if any, and restores stderr output
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.Infof("--- image-dedup log closed at %s ---", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
		logger.SetOutput(os.Stderr)
	}
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// DebugLog logs a message if debug level is enabled
func DebugLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// LogImageProcessed logs the outcome for a single image
func LogImageProcessed(path string, cached bool, err error) {
	entry := logger.WithField("path", path)
	switch {
	case err != nil:
		entry.WithError(err).Warn("FAILED")
	case cached:
		entry.Debug("CACHED")
	default:
		entry.Debug("PROCESSED")
	}
}
