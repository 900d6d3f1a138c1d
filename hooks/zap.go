package hooks

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Skryldev/media-ingest/core"
)

// ZapLogger adapts a *zap.Logger to core.Logger.  Fields are key/value pairs
// as with slog.
type ZapLogger struct {
	sl *zap.SugaredLogger
}

// NewZapLogger wraps an existing logger.
func NewZapLogger(zl *zap.Logger) *ZapLogger { return &ZapLogger{sl: zl.Sugar()} }

func (z *ZapLogger) Debug(msg string, fields ...interface{}) { z.sl.Debugw(msg, fields...) }
func (z *ZapLogger) Info(msg string, fields ...interface{})  { z.sl.Infow(msg, fields...) }
func (z *ZapLogger) Warn(msg string, fields ...interface{})  { z.sl.Warnw(msg, fields...) }
func (z *ZapLogger) Error(msg string, fields ...interface{}) { z.sl.Errorw(msg, fields...) }

// Sync flushes any buffered log entries.
func (z *ZapLogger) Sync() error { return z.sl.Sync() }

// ZapConfig selects level and destination for NewZapProduction.
type ZapConfig struct {
	Level string // debug, info, warn, error
	// File, when set, receives JSON logs rotated by lumberjack; stderr is
	// used otherwise.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewZapProduction builds a JSON zap logger for cfg.
func NewZapProduction(cfg ZapConfig) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var ws zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if cfg.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   cfg.Compress,
			LocalTime:  true,
		})
	}

	c := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, zapLevel(cfg.Level))
	return NewZapLogger(zap.New(c))
}

func zapLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

var _ core.Logger = (*ZapLogger)(nil)
