package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"safeform/internal/config"
)

var (
	// Logger is the process wide structured logger.
	Logger *zap.Logger
	// Sugar is Logger with printf style helpers.
	Sugar *zap.SugaredLogger
)

// Until Init runs, log lines go to stdout at info level.
func init() {
	use(zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), zapcore.InfoLevel))
}

// Init configures the global logger from cfg. Output is "console", "file" or
// "both"; anything else falls back to console.
func Init(cfg config.LoggingConfig) error {
	level := parseLevel(cfg.Level)
	encCfg := encoderConfig()

	consoleCore := func() zapcore.Core {
		return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), level)
	}
	fileCore := func() (zapcore.Core, error) {
		fileEncCfg := encCfg
		fileEncCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		w, err := getFileWriter(cfg.File)
		if err != nil {
			return nil, err
		}
		return zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), zapcore.AddSync(w), level), nil
	}

	var cores []zapcore.Core
	switch cfg.Output {
	case "file":
		core, err := fileCore()
		if err != nil {
			return err
		}
		cores = append(cores, core)
	case "both":
		core, err := fileCore()
		if err != nil {
			return err
		}
		cores = append(cores, consoleCore(), core)
	default:
		cores = append(cores, consoleCore())
	}

	use(zapcore.NewTee(cores...))
	Sugar.Infof("logger initialized: output=%s, level=%s", cfg.Output, level)
	return nil
}

func use(core zapcore.Core) {
	Logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	Sugar = Logger.Sugar()
	zap.ReplaceGlobals(Logger)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func getFileWriter(logFile string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func Debug(msg string, fields ...zap.Field) { Logger.Debug(msg, fields...) }

func Debugf(format string, args ...interface{}) { Sugar.Debugf(format, args...) }

func Info(msg string, fields ...zap.Field) { Logger.Info(msg, fields...) }

func Infof(format string, args ...interface{}) { Sugar.Infof(format, args...) }

func Warn(msg string, fields ...zap.Field) { Logger.Warn(msg, fields...) }

func Warnf(format string, args ...interface{}) { Sugar.Warnf(format, args...) }

func Error(msg string, fields ...zap.Field) { Logger.Error(msg, fields...) }

func Errorf(format string, args ...interface{}) { Sugar.Errorf(format, args...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) { Logger.Fatal(msg, fields...) }

// Fatalf logs and exits the process.
func Fatalf(format string, args ...interface{}) { Sugar.Fatalf(format, args...) }

// Sync flushes buffered log entries.
func Sync() { _ = Logger.Sync() }

// With returns a child logger carrying fields.
func With(fields ...zap.Field) *zap.Logger { return Logger.With(fields...) }
