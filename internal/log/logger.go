// Package log provides structured logging for the simulator using zap.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with memory-proxy-specific helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// Shorter timestamps in development
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Store logs a memory write, mirroring the human-readable "arm-mem-STORE" line.
func (l *Logger) Store(size string, addr uint64, value uint64, note string) {
	l.Debug("arm-mem-STORE",
		zap.String("size", size),
		Addr(addr),
		zap.String("value", Hex(value)),
		zap.String("note", note),
	)
}

// Fill logs a run-length-consolidated bulk write.
func (l *Logger) Fill(size string, addr uint64, pattern uint64, count int) {
	l.Debug("arm-mem-FILL",
		zap.String("size", size),
		Addr(addr),
		zap.String("pattern", Hex(pattern)),
		zap.Int("count", count),
	)
}

// Load logs a memory read that reached the transport.
func (l *Logger) Load(size string, addr uint64, value uint64) {
	l.Debug("arm-mem-LOAD",
		zap.String("size", size),
		Addr(addr),
		zap.String("value", Hex(value)),
	)
}

// Prefetch logs a flash-prefetch round trip.
func (l *Logger) Prefetch(addr uint64) {
	l.Debug("arm-prefetch", Addr(addr))
}

// Skip logs a store suppressed by the skip-store table.
func (l *Logger) Skip(addr uint64, reason string) {
	l.Debug("arm-mem-SKIP", Addr(addr), zap.String("reason", reason))
}

// Patch logs a code patch landing in the instruction cache.
func (l *Logger) Patch(addr uint64) {
	l.Debug("arm-mem-PATCH", Addr(addr))
}

// Hook logs a user hook firing at an address.
func (l *Logger) Hook(addr uint64) {
	l.Debug("arm-mem-HOOK", Addr(addr))
}

// HLE logs a line of console output captured from a high-level
// emulation call, adding the "HLE: " prefix the way the captured
// console buffer is rendered to the human log.
func (l *Logger) HLE(line string) {
	l.Debug("HLE: " + line)
}

// WithCategory returns a logger with the category field preset.
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("cat", category))}
}

// Hex formats a uint64 as hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Fn creates a function name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}
