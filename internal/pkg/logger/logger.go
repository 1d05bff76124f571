package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process-wide JSON logger. Level is a zap level
// name ("debug", "info", ...); an empty or unknown value means info.
func InitLogger(level string) (*zap.Logger, error) {
	logLevel := zap.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		logLevel = parsed
	}
	var logWriter = zapcore.AddSync(os.Stdout)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		logWriter,
		logLevel,
	)
	return zap.New(logCore, zap.AddCallerSkip(1), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}
