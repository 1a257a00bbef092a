package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewZerolog_WritesFileWithoutColor(t *testing.T) {
	restore := captureStdout(t)

	var file bytes.Buffer
	logger := NewZerolog(&file, "info", nil)
	logger.Info().Str("table", "rooms").Msg("Migrating schema")
	logger.Debug().Msg("hidden")

	stdout := restore()
	assert.Contains(t, file.String(), "Migrating schema")
	assert.Contains(t, file.String(), "table=rooms")
	assert.NotContains(t, file.String(), "\x1b[")
	assert.NotContains(t, file.String(), "hidden")
	assert.Contains(t, stdout, "Migrating schema")
}

func TestNewZerolog_Fields(t *testing.T) {
	restore := captureStdout(t)
	defer restore()

	var file bytes.Buffer
	logger := NewZerolog(&file, "debug", func(e *zerolog.Event) { e.Bool("fallback", true) })
	logger.Debug().Msg("connected")

	assert.Contains(t, file.String(), "fallback=true")
}

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, zerologLevel("trace"))
	assert.Equal(t, zerolog.WarnLevel, zerologLevel("WARN"))
	assert.Equal(t, zerolog.InfoLevel, zerologLevel("bogus"))
}
