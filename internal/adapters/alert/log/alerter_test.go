package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertWritesErrorRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	alerter := New(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, alerter.Alert(context.Background(), "pool openai-main exhausted"))

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="pool openai-main exhausted"`)
	assert.Contains(t, out, "component=alert")
	assert.Contains(t, out, "alert=true")
}

func TestAlertHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	alerter := New(slog.New(slog.NewTextHandler(&buf, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, alerter.Alert(ctx, "late"), context.Canceled)
	assert.Empty(t, buf.String())
}
