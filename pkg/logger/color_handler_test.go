package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandler(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		message  string
		wantCode string
	}{
		{
			name:     "error message has red color",
			level:    slog.LevelError,
			message:  "Export failed",
			wantCode: colorRed,
		},
		{
			name:     "warning message has yellow color",
			level:    slog.LevelWarn,
			message:  "Duplicate node code in table",
			wantCode: colorYellow,
		},
		{
			name:     "info message has no color",
			level:    slog.LevelInfo,
			message:  "Sliced graph by year",
			wantCode: "",
		},
		{
			name:     "wrote message has green color",
			level:    slog.LevelInfo,
			message:  "Wrote snapshot tables",
			wantCode: colorGreen,
		},
		{
			name:     "persisted message has green color",
			level:    slog.LevelInfo,
			message:  "Persisted run",
			wantCode: colorGreen,
		},
		{
			name:     "debug message has no color",
			level:    slog.LevelDebug,
			message:  "Wrote nothing",
			wantCode: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, slog.LevelDebug)

			logger.Log(context.Background(), tt.level, tt.message)

			output := buf.String()
			assert.Contains(t, output, tt.message)

			if tt.wantCode != "" {
				assert.Contains(t, output, tt.wantCode)
				assert.Contains(t, output, colorReset)
				return
			}
			for _, code := range []string{colorRed, colorYellow, colorGreen} {
				assert.NotContains(t, output, code)
			}
		})
	}
}

func TestColorHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug).With("run_id", "r1")

	logger.WithGroup("stats").Error("Export failed", "edges", 3)

	output := buf.String()
	assert.Contains(t, output, "Export failed")
	assert.Contains(t, output, "run_id=r1")
	assert.Contains(t, output, "stats.edges=3")
	assert.Contains(t, output, colorRed)
}

func TestColorHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestPlainLogger(t *testing.T) {
	var buf bytes.Buffer
	NewPlainLogger(&buf, slog.LevelInfo).Error("Export failed")

	assert.Contains(t, buf.String(), "ERROR Export failed")
	assert.False(t, strings.Contains(buf.String(), "\033["))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger(slog.LevelInfo)
	require.NotNil(t, logger)

	logger.Info("test info")
	logger.Error("test error")
}
