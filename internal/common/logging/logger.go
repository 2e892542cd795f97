// Package logging provides the structured logger shared by the pipeline,
// the prediction server and the CLI. Entries are written by zap.
package logging

import (
	"context"
	"fmt"
	"os"
)

// Logger is the logging surface the rest of the module depends on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Options configures the process logger built by Init.
type Options struct {
	Level string
	// File receives JSON lines in addition to the console output on stderr.
	File string
}

// Init builds the process logger. The returned close function flushes
// buffered entries and releases the log file; the entry point owns it.
func Init(opts Options) (Logger, func() error, error) {
	cfg := Config{Level: ParseLevel(opts.Level), Console: os.Stderr}

	var file *os.File
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		file = f
		cfg.JSON = f
	}

	logger := NewZapLogger(cfg)
	closeFn := func() error {
		// Sync on stderr returns EINVAL on some platforms.
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}

	logger.Debug("Logger initialized",
		String("level", cfg.Level.String()),
		String("log_file", opts.File),
	)
	return logger, closeFn, nil
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards all entries.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)                {}
func (nopLogger) Info(string, ...Field)                 {}
func (nopLogger) Warn(string, ...Field)                 {}
func (nopLogger) Error(string, error, ...Field)         {}
func (n nopLogger) WithFields(...Field) Logger          { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
