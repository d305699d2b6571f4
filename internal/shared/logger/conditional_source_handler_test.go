package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionalSourceHandler(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		showLevels []slog.Level
		wantSource bool
	}{
		{"info skipped by default set", slog.LevelInfo, []slog.Level{slog.LevelWarn, slog.LevelError}, false},
		{"warn annotated", slog.LevelWarn, []slog.Level{slog.LevelWarn, slog.LevelError}, true},
		{"error annotated", slog.LevelError, []slog.Level{slog.LevelWarn, slog.LevelError}, true},
		{"info annotated when requested", slog.LevelInfo, []slog.Level{slog.LevelInfo}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			log := slog.New(NewConditionalSourceHandler(base, tt.showLevels...))

			log.Log(t.Context(), tt.level, "payment reconciled", "payment_id", "pp_1")

			out := buf.String()
			assert.Contains(t, out, "payment_id=pp_1")
			if tt.wantSource {
				assert.Contains(t, out, "source=")
				assert.Contains(t, out, "conditional_source_handler_test.go")
			} else {
				assert.NotContains(t, out, "source=")
			}
		})
	}
}

func TestConditionalSourceHandler_WithAttrsKeepsLevels(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	log := slog.New(NewConditionalSourceHandler(base, slog.LevelError)).With("component", "allocator")

	log.Error("no node available")

	assert.Contains(t, buf.String(), "component=allocator")
	assert.Contains(t, buf.String(), "source=")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
