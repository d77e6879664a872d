package utils

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := CallWithRetry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	_, err := CallWithRetry(context.Background(), func() (int, error) {
		calls++
		return 0, assert.AnError
	}, 3, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := CallWithRetry(context.Background(), func() (int, error) {
		calls++
		return 0, Permanent(assert.AnError)
	}, 5, time.Millisecond)

	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := CallWithRetry(ctx, func() (int, error) {
		calls++
		return 0, assert.AnError
	}, 5, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"text", "json", "dev"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, "debug", format)
			logger.Debug("hello", "key", "value")
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")
	logger.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestSetupLogger_BadPath(t *testing.T) {
	_, err := SetupLogger("info", "text", filepath.Join(t.TempDir(), "missing", "log.txt"))
	assert.Error(t, err)
}
