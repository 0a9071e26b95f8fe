package logger

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		NameLoggerOption("orchestrator"),
		OutputLoggerOption(&buf),
		FormatLoggerOption(logger.JSONFormat),
		LevelLoggerOption(logger.InfoLevel),
	)

	log.Debug("hidden")
	log.WithFields(map[string]any{"tick": "abc"}).Infof("outcome %s", "committed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "outcome committed", entry["msg"])
	assert.Equal(t, "orchestrator", entry["logger"])
	assert.Equal(t, "abc", entry["tick"])
	assert.Equal(t, "info", entry["level"])
}

func TestLoggerLevel(t *testing.T) {
	log := NewLogger(OutputLoggerOption(&bytes.Buffer{}), LevelLoggerOption(logger.WarnLevel))
	assert.Equal(t, logger.WarnLevel, log.GetLevel())
	assert.True(t, log.IsLevelEnabled(logger.ErrorLevel))
	assert.False(t, log.IsLevelEnabled(logger.InfoLevel))

	log = NewLogger(OutputLoggerOption(&bytes.Buffer{}), LevelLoggerOption("bogus"))
	assert.Equal(t, logger.InfoLevel, log.GetLevel())
}

func TestNop(t *testing.T) {
	log := Nop()
	log.WithFields(map[string]any{"a": 1}).Error("nothing")
	assert.False(t, log.IsLevelEnabled(logger.FatalLevel))
}
