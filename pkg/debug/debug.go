// Package debug provides conditional debug logging for glens.
//
// Debug logging is enabled by setting the GLENS_DEBUG environment variable:
//
//	GLENS_DEBUG=1 glens view fixture.json
//
// When enabled, debug messages are written to stderr by a zap development
// logger. When disabled (default), the printf-style helpers are no-ops and
// Logger returns a no-op logger unless Configure attached a log file.
//
// Usage:
//
//	import "github.com/vanderheijden86/graphlens/pkg/debug"
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	    debug.Log("filtered %d nodes", count)
//	}
package debug

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  = zap.NewNop()
	sugar   = logger.Sugar()
	rotator *lumberjack.Logger
)

func init() {
	if os.Getenv("GLENS_DEBUG") != "" {
		SetEnabled(true)
	}
}

// Options configures the persistent log sink.
type Options struct {
	// LogPath, when set, receives JSON logs rotated by size.
	LogPath    string
	MaxSizeMB  int
	MaxBackups int
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	rebuild()
}

// Configure attaches a rotating log file. Passing a zero Options detaches it.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	if opts.LogPath != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.LogPath,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
		}
	}
	rebuild()
}

// rebuild swaps the global logger; callers hold mu.
func rebuild() {
	var cores []zapcore.Core
	if enabled {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.Lock(os.Stderr),
			zap.DebugLevel,
		))
	}
	if rotator != nil {
		level := zap.InfoLevel
		if enabled {
			level = zap.DebugLevel
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}
	_ = logger.Sync()
	if len(cores) == 0 {
		logger = zap.NewNop()
	} else {
		logger = zap.New(zapcore.NewTee(cores...)).Named("glens")
	}
	sugar = logger.Sugar()
}

// Logger returns the structured logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Named returns a child logger for a component.
func Named(component string) *zap.Logger {
	return Logger().Named(component)
}

// With returns the logger annotated with fields.
func With(fields ...zap.Field) *zap.Logger {
	return Logger().With(fields...)
}

// Sync flushes buffered entries and closes the log file.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	err := logger.Sync()
	if rotator != nil {
		if cerr := rotator.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !Enabled() {
		return
	}
	mu.RLock()
	s := sugar
	mu.RUnlock()
	s.Debugf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !Enabled() {
		return
	}
	Logger().Debug("timing", zap.String("op", name), zap.Duration("took", d))
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	}
func LogEnterExit(name string) func() {
	if !Enabled() {
		return func() {}
	}
	l := Logger()
	l.Debug("-> " + name)
	start := time.Now()
	return func() {
		l.Debug("<- "+name, zap.Duration("took", time.Since(start)))
	}
}

// Dump logs a value with its type for debugging complex structures.
func Dump(name string, v any) {
	if !Enabled() {
		return
	}
	Logger().Debug("dump", zap.String("name", name), zap.Any("value", v))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
