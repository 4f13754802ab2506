package app

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := parseLogLevel(&Config{LogLevel: raw}); got != want {
			t.Fatalf("level %q: got %v, want %v", raw, got, want)
		}
	}
	if got := parseLogLevel(nil); got != slog.LevelInfo {
		t.Fatalf("nil config: got %v, want info", got)
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger := NewLogger(&Config{LogLevel: "warn"}, "raps-api")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be suppressed at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("warn must be enabled at warn level")
	}
}
