package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger writes leveled messages to stderr and, optionally, to a log file.
type Logger struct {
	info    *log.Logger
	warn    *log.Logger
	err     *log.Logger
	debug   *log.Logger
	verbose bool
	file    *os.File
}

// NewLogger builds a logger writing to w. When logFile is non-empty every
// message is also appended to it.
func NewLogger(w io.Writer, logFile string, verbose bool) (*Logger, error) {
	var f *os.File
	if logFile != "" {
		var err error
		f, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
	}
	flags := log.Ldate | log.Ltime
	return &Logger{
		info:    log.New(w, "INFO: ", flags),
		warn:    log.New(w, "WARN: ", flags),
		err:     log.New(w, "ERROR: ", flags),
		debug:   log.New(w, "DEBUG: ", flags),
		verbose: verbose,
		file:    f,
	}, nil
}

// Info logs an informational message.
func (l *Logger) Info(format string, v ...any) { l.info.Printf(format, v...) }

// Warn logs a recoverable problem.
func (l *Logger) Warn(format string, v ...any) { l.warn.Printf(format, v...) }

// Error logs a failure.
func (l *Logger) Error(format string, v ...any) { l.err.Printf(format, v...) }

// Debug logs only when verbose output is enabled.
func (l *Logger) Debug(format string, v ...any) {
	if !l.verbose {
		return
	}
	l.debug.Printf(format, v...)
}

// Timed logs the duration of a step at debug level when the returned func runs.
func (l *Logger) Timed(step string) func() {
	start := time.Now()
	return func() { l.Debug("%s took %v", step, time.Since(start)) }
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Log returns the process-wide logger, a quiet stderr logger if none was set.
func Log() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = NewLogger(os.Stderr, "", false)
	}
	return defaultLogger
}
