package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := Component("store")
	l.Info().Str("op", "create").Msg("event created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "store", line["component"])
	assert.Equal(t, "create", line["op"])
	assert.Equal(t, "event created", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestSetupWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "warn", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := Worker()
	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupWriter_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "loud", "json")

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestComponentHelpers_Chainable(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Auth().Info().Msg("a")
	Store().Warn().Msg("b")
	Session().Error().Msg("c")

	dec := json.NewDecoder(&buf)
	var got []string
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		got = append(got, line["component"].(string))
	}
	assert.Equal(t, []string{"auth", "store", "session"}, got)
}
