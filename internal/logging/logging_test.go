package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", false, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "optimizer").Msg("combination failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "optimizer", entry["component"])
	assert.Equal(t, "combination failed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("verbose", false, &buf)

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", true, &buf)
	logger.Info().Msg("promoted")

	assert.Contains(t, buf.String(), "promoted")
	assert.False(t, json.Valid(buf.Bytes()))
}
