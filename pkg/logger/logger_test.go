package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: slog.LevelInfo, Format: FormatJSON})

	l.Debug("hidden")
	l.Info("batch committed", BatchSize(3), StudentID("s-1"), Err(errors.New("x")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch committed", entry["msg"])
	assert.Equal(t, float64(3), entry["batch_size"])
	assert.Equal(t, "s-1", entry["student_id"])
	assert.Equal(t, "x", entry["error"])
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Format: FormatJSON})

	ctx := WithContext(context.Background(), WithRequestID(l, "req-1"))
	FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}
