package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is ready as soon as the package
// is imported.
var Log *zap.Logger

func levelFromEnv() zapcore.Level {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "", "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		fmt.Fprintf(os.Stderr, "Warning: invalid LOG_LEVEL %q, using INFO\n", levelStr)
		return zapcore.InfoLevel
	}
}

func init() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", r)
			Log = zap.NewNop()
		}
	}()

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		levelFromEnv(),
	)
	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Close flushes any buffered log entries.
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

// CronAdapter makes a zap logger satisfy the cron.Logger interface.
type CronAdapter struct {
	logger *zap.Logger
}

// NewCronAdapter wraps logger for use with robfig/cron.
func NewCronAdapter(logger *zap.Logger) *CronAdapter {
	return &CronAdapter{logger: logger}
}

func (a *CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, toFields(keysAndValues...)...)
}

func (a *CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(toFields(keysAndValues...), zap.Error(err))
	a.logger.Error(msg, fields...)
}

func toFields(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("arg_%d", i/2)
		}
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "<missing>"))
		}
	}
	return fields
}
