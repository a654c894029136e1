package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-lti/internal/logging"
)

func TestInitJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	require.NoError(t, logging.InitWriter(&buf, "warn", "json"))

	log.Ctx(context.Background()).Info().Msg("dropped")
	log.Ctx(context.Background()).Warn().Str("k", "v").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "v", line["k"])
	assert.Equal(t, "warn", line["level"])
}

func TestInitRejects(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, logging.InitWriter(&buf, "loud", "json"))
	assert.Error(t, logging.InitWriter(&buf, "info", "xml"))
}
