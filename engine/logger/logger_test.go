package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Carmen-Shannon/oxy-scene/engine/config"
)

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LoggingConfig
		level    zapcore.Level
		encoding string
	}{
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, "console"},
		{"json warn", config.LoggingConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel, "json"},
		{"unknown level", config.LoggingConfig{Level: "loud"}, zapcore.InfoLevel, "console"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildConfig(tt.cfg)
			assert.Equal(t, tt.level, c.Level.Level())
			assert.Equal(t, tt.encoding, c.Encoding)
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	assert.NotNil(t, OrNop(nil))
	assert.Same(t, l, OrNop(l))
}
