// Package zap wires the logger package's subsystem vars to real
// zap.SugaredLoggers, reading sinks and levels from config.App.Logger.
package zap

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forbearing/sqlmap/config"
	"github.com/forbearing/sqlmap/logger"
)

// Init builds the five subsystem loggers from the active configuration
// and installs them into the logger package's vars, plus replaces zap's
// own globals so any direct zap.L()/zap.S() call shares the same sink.
func Init() error {
	cfg := config.App.Logger

	base := New("catalog.log", cfg)
	zap.ReplaceGlobals(base.Desugar())

	logger.Catalog = New("catalog.log", cfg)
	logger.SQLNode = New("sqlnode.log", cfg)
	logger.Binder = New("binder.log", cfg)
	logger.RowMap = New("rowmap.log", cfg)
	logger.Cache = New("cache.log", cfg)

	return nil
}

// Clean flushes every subsystem logger's buffered output.
func Clean() {
	for _, l := range []*zap.SugaredLogger{
		logger.Catalog, logger.SQLNode, logger.Binder, logger.RowMap, logger.Cache,
	} {
		_ = l.Sync()
	}
}

// New builds a single subsystem logger named filename, rolled with
// lumberjack under cfg.Dir, or to stdout when cfg.Dir is empty.
func New(filename string, cfg config.Logger) *zap.SugaredLogger {
	encConfig := zap.NewProductionEncoderConfig()
	encConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "console", "text":
		encoder = zapcore.NewConsoleEncoder(encConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encConfig)
	}

	return zap.New(
		zapcore.NewCore(encoder, newWriter(filename, cfg), newLevel(cfg.Level)),
		zap.AddCaller(),
		zap.AddCallerSkip(0),
		zap.AddStacktrace(zapcore.FatalLevel),
	).Sugar()
}

func newWriter(filename string, cfg config.Logger) zapcore.WriteSyncer {
	if len(strings.TrimSpace(cfg.Dir)) == 0 {
		return zapcore.AddSync(os.Stdout)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, filename),
		MaxAge:     cfg.MaxAge,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	})
}

func newLevel(level string) zapcore.Level {
	if len(level) == 0 {
		return zapcore.InfoLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
