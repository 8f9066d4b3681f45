package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.WarnLevel) })

	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "debug", JSON: true, Output: &buf}))

	log.Debug().Str("k", "v").Msg("[test] hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "[test] hello", line["message"])
	assert.Equal(t, "v", line["k"])
}

func TestSetup_DefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{JSON: true, Output: &buf}))

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_BadLevel(t *testing.T) {
	assert.Error(t, Setup(Options{Level: "loud"}))
}
