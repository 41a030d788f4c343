package logger_test

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DebugLevel,
		"info":    logger.InfoLevel,
		"warning": logger.WarnLevel,
		"WARN":    logger.WarnLevel,
		"error":   logger.ErrorLevel,
		"":        logger.InfoLevel,
		"bogus":   logger.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, logger.ParseLevel(in), "level %q", in)
	}
}

func TestNewWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf)

	log.Warn().Str("group", "soc").Msg("Skipping read cycle")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "soc", line["group"])
	assert.Equal(t, "Skipping read cycle", line["message"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf)

	log.ErrorWithCode(errors.New().Wrap(errors.ErrConnectBMS, io.EOF)).Msg("")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "connect_bms_failed", line["error_code"])
	assert.Equal(t, "EOF", line["error"])
}
