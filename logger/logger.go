package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/muthu-raja18/QuickServe-sub001/config"
)

// New creates a zap logger configured by environment: JSON with ISO8601
// timestamps in production, colored console output otherwise.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Production() {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", "quickserve")), nil
}

// Sync flushes buffered entries. Sync errors on stdout/stderr are harmless.
func Sync(l *zap.Logger) {
	_ = l.Sync()
}
