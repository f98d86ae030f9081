package log

import (
	"github.com/bronystylecrazy/ultraweave/build"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and the fields dropped from every entry.
type Config struct {
	Level      string   `mapstructure:"level"`
	DropFields []string `mapstructure:"drop_fields"`
}

func NewZapLogger(cfg Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if build.IsDevelopment() {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level, zapcore.DebugLevel))
		logger, err = zapConfig.Build()
	} else {
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level, zapcore.InfoLevel))
		logger, err = zapConfig.Build()
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.DropFields) > 0 {
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return FilterFieldsCore(core, cfg.DropFields...)
		}))
	}
	return logger, nil
}

func parseLevel(level string, fallback zapcore.Level) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return fallback
	}
}

func NewEventLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
}
