// Package logger builds the process-wide zap logger.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for the JSON log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 5
	MaxAgeDays = 30
)

// Options configures New.
type Options struct {
	// File is the rotated JSON log file. Empty disables file output.
	File       string
	Production bool
}

// New returns a logger that tees a rotated JSON file core with a console
// core. The console is human readable in development.
func New(opts Options) *zap.Logger {
	return zap.New(core(opts, zapcore.Lock(os.Stdout)), zap.AddCaller())
}

func core(opts Options, console zapcore.WriteSyncer) zapcore.Core {
	jsonEncoder := zapcore.NewJSONEncoder(fileEncoderConfig())

	var consoleEncoder zapcore.Encoder
	consoleLevel := zap.DebugLevel
	if opts.Production {
		consoleEncoder = jsonEncoder
		consoleLevel = zap.InfoLevel
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, console, consoleLevel)

	if opts.File == "" {
		return consoleCore
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), zap.InfoLevel)

	return zapcore.NewTee(fileCore, consoleCore)
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
