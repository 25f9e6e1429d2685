// internal/observability/logger.go

package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/uiharness/internal/config"
)

var (
	current  atomic.Pointer[zap.Logger]
	initOnce sync.Once
)

const colorReset = "\x1b[0m"

// ansi maps the color names accepted in logger.colors to escape sequences.
var ansi = map[string]string{
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// benignSyncErrors are returned by Sync on terminals and pipes.
var benignSyncErrors = []string{
	"sync /dev/stdout",
	"invalid argument",
	"inappropriate ioctl",
	"operation not supported",
}

// Initialize installs the process-wide logger. Calls after the first are ignored
// until ResetForTest.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	initOnce.Do(func() {
		l := NewLogger(cfg, console)
		current.Store(l)
		zap.ReplaceGlobals(l)
		zap.RedirectStdLog(l)
	})
}

// InitializeLogger is Initialize with stdout as the console sink.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stdout))
}

// NewLogger builds a standalone logger from cfg. The global instance is left alone.
func NewLogger(cfg config.LoggerConfig, console zapcore.WriteSyncer) *zap.Logger {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		_ = lvl.UnmarshalText([]byte(cfg.Level))
	}

	tee := []zapcore.Core{zapcore.NewCore(encoderFor(cfg.Format, cfg.Colors), console, lvl)}
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// files always get JSON
		tee = append(tee, zapcore.NewCore(encoderFor("json", cfg.Colors), zapcore.AddSync(rotating), lvl))
	}

	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(tee...), opts...).Named(cfg.ServiceName)
}

// ResetForTest drops the global logger so Initialize can run again.
func ResetForTest() {
	current.Store(nil)
	initOnce = sync.Once{}
}

func levelColors(c config.ColorConfig) map[zapcore.Level]string {
	return map[zapcore.Level]string{
		zapcore.DebugLevel:  ansi[c.Debug],
		zapcore.InfoLevel:   ansi[c.Info],
		zapcore.WarnLevel:   ansi[c.Warn],
		zapcore.ErrorLevel:  ansi[c.Error],
		zapcore.DPanicLevel: ansi[c.DPanic],
		zapcore.PanicLevel:  ansi[c.Panic],
		zapcore.FatalLevel:  ansi[c.Fatal],
	}
}

func encoderFor(format string, colors config.ColorConfig) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if format != "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	palette := levelColors(colors)
	ec.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		name := l.CapitalString()
		if esc := palette[l]; esc != "" {
			name = esc + name + colorReset
		}
		enc.AppendString(name)
	}
	// "uiharness.suite." reads better than a bare name in front of the message.
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// GetLogger returns the global logger. Before Initialize it hands out a
// development logger named "fallback".
func GetLogger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	dev, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	dev.Warn("Global logger requested before initialization; using fallback.")
	return dev.Named("fallback")
}

// Sync flushes the global logger, if any.
func Sync() {
	l := current.Load()
	if l == nil {
		return
	}
	err := l.Sync()
	if err == nil {
		return
	}
	msg := err.Error()
	for _, benign := range benignSyncErrors {
		if strings.Contains(msg, benign) {
			return
		}
	}
	fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
}
