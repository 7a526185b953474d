// Package logging builds the process logger: the slog API on top of a zap core.
package logging

import (
	"log/slog"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger tagged with service and the zap logger backing it, which the caller
// must Sync before exit.
func New(service, level, format string) (*slog.Logger, *zap.Logger, error) {
	var zapCfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatConsole:
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	zl, err := zapCfg.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "build zap logger")
	}

	log := slog.New(zapslog.NewHandler(zl.Core())).With(slog.String("service", service))
	return log, zl, nil
}

// ParseLevel maps a config string to a zap level. Unknown values mean info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Discard is a logger for tests.
func Discard() *slog.Logger {
	return slog.New(zapslog.NewHandler(zapcore.NewNopCore()))
}
