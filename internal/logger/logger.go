package logger

import (
	"os"
	"path/filepath"

	"github.com/ippclub/craftsync/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger initializes the logger with stdout and optional rotating file output
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}

	if cfg.Log.Filename != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(cfg.Log.Filename)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}

		// Configure log rotation
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Log.Filename,
			MaxSize:    cfg.Log.MaxSize, // megabytes
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge, // days
			Compress:   cfg.Log.Compress,
		}))
	}

	core := zapcore.NewCore(
		newEncoder(cfg.Log.Format),
		zapcore.NewMultiWriteSyncer(syncers...),
		getLogLevel(cfg.Log.Level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// getLogLevel converts string level to zapcore.Level
func getLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
