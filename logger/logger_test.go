package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, stage := range []string{"dev", "prod", "Production"} {
		log, err := New(Config{Stage: stage, Level: "debug"})
		require.NoError(t, err, stage)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel), stage)
	}

	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}
