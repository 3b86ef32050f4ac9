// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes levelled messages through a zap core.  Every line is
// tagged with a three letter level ([INF], [WRN], [DBG], [ERR]) and,
// unless disabled, an ISO8601 timestamp.  The session log reader in
// internal/session depends on that layout.
type Logger struct {
	mu         sync.Mutex
	level      zap.AtomicLevel
	outputs    []zapcore.WriteSyncer
	files      []*os.File
	timestamps bool
	fields     []interface{}
	sugar      *zap.SugaredLogger
}

// NewLogger returns a Logger writing to stderr.  With debug set, Debug
// messages are printed too.
func NewLogger(debug bool) *Logger {
	l := &Logger{
		level:      zap.NewAtomicLevelAt(zapcore.InfoLevel),
		outputs:    []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)},
		timestamps: true,
	}
	if debug {
		l.level.SetLevel(zapcore.DebugLevel)
	}
	l.rebuild()
	return l
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	l := NewLogger(false)
	l.SetOutput(io.Discard)
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = on
	l.rebuild()
}

// SetOutput replaces every output (default: os.Stderr) with w.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs = []zapcore.WriteSyncer{zapcore.AddSync(w)}
	l.rebuild()
}

// SetDebug toggles debug output at runtime.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

// Debugging reports whether debug messages are printed.
func (l *Logger) Debugging() bool { return l.level.Enabled(zapcore.DebugLevel) }

// AddFile tees every subsequent message into the file at path, creating
// it (and its directory) if needed.  Messages are appended.
func (l *Logger) AddFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.files = append(l.files, f)
	l.outputs = append(l.outputs, zapcore.Lock(f))
	l.rebuild()
	return nil
}

// With returns a child logger that adds the given key/value pairs to
// every line.  The child shares the parent's level.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	fields := make([]interface{}, 0, len(l.fields)+len(keysAndValues))
	fields = append(fields, l.fields...)
	fields = append(fields, keysAndValues...)

	child := &Logger{
		level:      l.level,
		outputs:    l.outputs,
		timestamps: l.timestamps,
		fields:     fields,
	}
	child.rebuild()
	return child
}

// Info prints at info level.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) { l.current().Infof(format, args...) }

// Warn prints at warn level.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) { l.current().Warnf(format, args...) }

// Debug prints only in debug mode.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) { l.current().Debugf(format, args...) }

// Error always prints.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) { l.current().Errorf(format, args...) }

// Sync flushes buffered output.
func (l *Logger) Sync() error { return l.current().Sync() }

// Close flushes and closes any files added with AddFile.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		_ = f.Sync()
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	l.outputs = []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	l.rebuild()
	return firstErr
}

func (l *Logger) current() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

// rebuild must be called with l.mu held (or before l is shared).
func (l *Logger) rebuild() {
	enc := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      levelTag,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if l.timestamps {
		enc.TimeKey = "ts"
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.NewMultiWriteSyncer(l.outputs...),
		l.level,
	)
	l.sugar = zap.New(core).Sugar().With(l.fields...)
}

func levelTag(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch lvl {
	case zapcore.DebugLevel:
		enc.AppendString("[DBG]")
	case zapcore.InfoLevel:
		enc.AppendString("[INF]")
	case zapcore.WarnLevel:
		enc.AppendString("[WRN]")
	default:
		enc.AppendString("[ERR]")
	}
}
