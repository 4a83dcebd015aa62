// Package logger builds the zap logger shared by the scene components.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Carmen-Shannon/oxy-scene/engine/config"
)

// New builds a logger from the logging settings. An unknown level falls back to info;
// format "json" selects the production encoder, anything else the coloured console encoder.
//
// Parameters:
//   - cfg: level and format
//
// Returns:
//   - *zap.Logger: the logger
//   - error: the zap build error
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := buildConfig(cfg)
	return zapCfg.Build()
}

func buildConfig(cfg config.LoggingConfig) zap.Config {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
