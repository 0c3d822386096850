package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithRequestIDIsCarriedByContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "motopos", Level: zerolog.DebugLevel, Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-42")
	ctx = log.WithField(ctx, "branch_id", "branch-hcm")
	log.Info(ctx, "checkout accepted")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "branch-hcm", entry["branch_id"])
	assert.Equal(t, "motopos", entry["service"])
	assert.Equal(t, "checkout accepted", entry["message"])
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "motopos", Output: &buf})

	log.Error(context.Background(), "persist failed", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: zerolog.WarnLevel})

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}
