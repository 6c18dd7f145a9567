package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Setenv("ENV", "")
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	log.Debug().Msg("hidden")
	log.Info().Str("job_id", "j-1").Msg("Job completed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Job completed", entry["message"])
	assert.Equal(t, "j-1", entry["job_id"])
	assert.Equal(t, serviceName, entry["service"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
