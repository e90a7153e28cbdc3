// Package logger provides the global structured logger for alchemgo.
//
// The logger defaults to a no-op so that library consumers who never
// call Initialize pay nothing and see nothing. Applications embedding
// the estimators call Initialize once at startup.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance
	Logger *zap.SugaredLogger
	// JSONOutput tracks whether JSON output is enabled
	JSONOutput bool
)

func init() {
	// Safe no-op logger at package load time so components may log
	// before (or without) Initialize being called.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger based on the JSON output preference
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		// JSON structured output for machine consumption
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = config.Build()
	} else {
		// Human-readable console output
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encoderConfig),
				zapcore.AddSync(os.Stdout),
				zap.InfoLevel,
			),
		)
	}

	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// SetLogger replaces the global logger, returning the previous one.
// Used by tests to capture output via zaptest.
func SetLogger(l *zap.SugaredLogger) *zap.SugaredLogger {
	prev := Logger
	Logger = l
	return prev
}

// Sync flushes any buffered log entries
func Sync() error {
	return Logger.Sync()
}
