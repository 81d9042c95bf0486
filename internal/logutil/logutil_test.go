package logutil

import (
	"context"
	"log/slog"
	"testing"
)

func TestNoopIfNil(t *testing.T) {
	if NoopIfNil(nil) != Noop() {
		t.Error("expected the shared discard logger for nil input")
	}

	l := slog.Default()
	if NoopIfNil(l) != l {
		t.Error("expected the given logger to be returned")
	}
}

func TestNewCLILevels(t *testing.T) {
	ctx := context.Background()

	if NewCLI(false).Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled without verbose")
	}
	if !NewCLI(false).Enabled(ctx, slog.LevelWarn) {
		t.Error("warn should be enabled without verbose")
	}
	if !NewCLI(true).Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be enabled with verbose")
	}
}
