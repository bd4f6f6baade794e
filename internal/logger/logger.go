// Package logger builds the zap logger used across the daemon.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tazhate/icalsync/config"
)

// New creates a zap logger from the log configuration. Console encoding is
// the default for interactive use; json is intended for the daemon.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Level == "debug" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
			zc.Level = zap.NewAtomicLevelAt(level)
		}
	}

	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.DisableStacktrace = true
	} else {
		zc.Encoding = "json"
	}

	return zc.Build()
}
