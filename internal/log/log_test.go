package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	charm "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/qsync/internal/log"
)

func TestCreateHandlerFormats(t *testing.T) {
	t.Parallel()

	for _, format := range []string{log.TextFormat, log.LogfmtFormat, log.JSONFormat} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			h, err := log.CreateHandler(buf, "info", format)
			require.NoError(t, err)

			slog.New(h).Info("scenario finished", "workers", 4)
			assert.Contains(t, buf.String(), "scenario finished")
			assert.Contains(t, buf.String(), "workers")
		})
	}
}

func TestCreateHandlerJSON(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h, err := log.CreateHandler(buf, "debug", "json")
	require.NoError(t, err)

	slog.New(h).Debug("hello", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
}

func TestCreateHandlerLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h, err := log.CreateHandler(buf, "warn", "text")
	require.NoError(t, err)

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
}

func TestCreateHandlerErrors(t *testing.T) {
	t.Parallel()

	_, err := log.CreateHandler(&bytes.Buffer{}, "info", "xml")
	require.ErrorIs(t, err, log.ErrUnknownFormat)

	_, err = log.CreateHandler(&bytes.Buffer{}, "loud", "text")
	require.Error(t, err)
}

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]charm.Level{
		"":        charm.InfoLevel,
		"debug":   charm.DebugLevel,
		"trace":   charm.DebugLevel,
		"WARNING": charm.WarnLevel,
		"error":   charm.ErrorLevel,
	}
	for in, want := range tcs {
		got, err := log.GetLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
