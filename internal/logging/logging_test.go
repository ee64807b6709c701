package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "WARN", Format: "json"}, &buf)
	check.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("dropped")
	check.Equal(t, 0, buf.Len())

	logger.Warn().Str("component", "test").Msg("kept")
	var entry map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	check.Equal(t, "kept", entry["message"].(string))
	check.Equal(t, "test", entry["component"].(string))
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	check.Equal(t, zerolog.InfoLevel, newLogger(Config{}, &buf).GetLevel())
	check.Equal(t, zerolog.InfoLevel, newLogger(Config{Level: "loud"}, &buf).GetLevel())
}
