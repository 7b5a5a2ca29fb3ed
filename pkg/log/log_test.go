package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	logger := slog.Default()
	assert.Same(t, logger, OrNop(logger))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithContext(context.Background(), logger)

	FromContext(ctx, nil).Info("hello", "run_id", "r1")

	assert.Contains(t, buf.String(), "run_id=r1")
	assert.NotNil(t, FromContext(context.Background(), nil))
}
