package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := Operation(Component(zerolog.New(&buf), "manager"), "op-1", "Sober Dogs")
	logger.Info().Msg("posted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "manager", entry["component"])
	assert.Equal(t, "op-1", entry["operation_id"])
	assert.Equal(t, "Sober Dogs", entry["operation"])
	assert.Equal(t, "posted", entry["message"])
}
