package logging

import (
	"context"
	"log/slog"
	"testing"

	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSlogRecordsReachZapCore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := slog.New(zapslog.NewHandler(core)).With(slog.String("component", "test"))

	log.Debug("dropped")
	log.InfoContext(context.Background(), "kept", slog.Int("n", 3))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if entries[0].Message != "kept" || fields["component"] != "test" || fields["n"] != int64(3) {
		t.Fatalf("entry = %q %v", entries[0].Message, fields)
	}
}

func TestNew(t *testing.T) {
	log, zl, err := New("awaydesk-test", "debug", FormatJSON)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug must be enabled")
	}
}
