package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ScopedFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("punchflow", &buf).
		WithRunID("run-1").
		WithEntity("punch").
		WithComponent("loader").
		WithError(errors.New("boom"))

	log.Info().Int("rows", 3).Msg("loaded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "punchflow", line["service"])
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, "punch", line["entity"])
	assert.Equal(t, "loader", line["component"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, float64(3), line["rows"])
	assert.Equal(t, "loaded", line["message"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().WithRunID("x").Info().Msg("discarded")
	})
}
