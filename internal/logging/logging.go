// Package logging builds the process-wide zap logger.
package logging

import (
	"os"

	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns an ECS-formatted JSON logger writing to stdout.
func New(level string) *zap.Logger {
	encoderConfig := ecszap.NewDefaultEncoderConfig()
	core := ecszap.NewCore(encoderConfig, os.Stdout, ParseLevel(level))
	return zap.New(core, zap.AddCaller())
}

func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "development":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
