package volio

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

/*
===============================================================================
    Logging
===============================================================================
*/

func normaliseWriters(writers ...zapcore.WriteSyncer) zapcore.WriteSyncer {
	if len(writers) == 1 {
		return writers[0]
	}
	return zapcore.NewMultiWriteSyncer(writers...)
}

// NewJSONLogger creates a `zap.SugaredLogger` configured for JSON output to `writers`
func NewJSONLogger(writers ...zapcore.WriteSyncer) *zap.SugaredLogger {
	writer := normaliseWriters(writers...)
	encoderCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, logLevel)
	return zap.New(core).Sugar()
}

// NewConsoleLogger creates a `zap.SugaredLogger` configured for human-readable output to `writers`
func NewConsoleLogger(writers ...zapcore.WriteSyncer) *zap.SugaredLogger {
	writer := normaliseWriters(writers...)
	encoderCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), writer, logLevel)
	return zap.New(core).Sugar()
}

var (
	logLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	stdLogger = NewConsoleLogger(zapcore.Lock(os.Stderr))
)

// SetLoggingLevel adjusts the minimum level emitted by the package loggers.
// Supported values:
// "debug" / "5": all logging enabled
// "info" / "4":  info and above enabled
// "warn" / "3":  warn and above enabled
// "error" / "2": error and above enabled
// "fatal" / "1": only fatal enabled
// "disabled" / "none" / "off", "0": all loggers disabled
func SetLoggingLevel(level string) {
	switch strings.ToLower(level) {
	case "debug", "5":
		logLevel.SetLevel(zapcore.DebugLevel)
	case "info", "4":
		logLevel.SetLevel(zapcore.InfoLevel)
	case "warn", "3":
		logLevel.SetLevel(zapcore.WarnLevel)
	case "error", "2":
		logLevel.SetLevel(zapcore.ErrorLevel)
	case "fatal", "1":
		logLevel.SetLevel(zapcore.FatalLevel)
	case "disabled", "none", "off", "0":
		logLevel.SetLevel(zapcore.FatalLevel + 1)
	}
}

// Debugf logs to the package logger in the manner of fmt.Printf
func Debugf(format string, v ...interface{}) {
	stdLogger.Debugf(format, v...)
}

// Debug logs to the package logger in the manner of fmt.Print
func Debug(v ...interface{}) {
	stdLogger.Debug(v...)
}

// Infof logs to the package logger in the manner of fmt.Printf
func Infof(format string, v ...interface{}) {
	stdLogger.Infof(format, v...)
}

// Info logs to the package logger in the manner of fmt.Print
func Info(v ...interface{}) {
	stdLogger.Info(v...)
}

// Warnf logs to the package logger in the manner of fmt.Printf
func Warnf(format string, v ...interface{}) {
	stdLogger.Warnf(format, v...)
}

// Warn logs to the package logger in the manner of fmt.Print
func Warn(v ...interface{}) {
	stdLogger.Warn(v...)
}

// Errorf logs to the package logger in the manner of fmt.Printf
func Errorf(format string, v ...interface{}) {
	stdLogger.Errorf(format, v...)
}

// Error logs to the package logger in the manner of fmt.Print
func Error(v ...interface{}) {
	stdLogger.Error(v...)
}

// Fatalf logs to the package logger in the manner of fmt.Printf, then exits
func Fatalf(format string, v ...interface{}) {
	stdLogger.Fatalf(format, v...)
}

/*
===============================================================================
    Misc
===============================================================================
*/

// ConcurrentlyWalkDir recursively traverses a directory and calls `onFile` for each found file inside a goroutine.
func ConcurrentlyWalkDir(dirPath string, onFile func(file string)) error {
	guard := make(chan bool, GetConfig().OpenFileLimit) // limits number of concurrently open files
	var files []string
	wg := sync.WaitGroup{}

	err := filepath.Walk(dirPath, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, filePath)
		return nil
	})
	if err != nil {
		return err
	}

	// now goroutine each file
	for _, filePath := range files {
		wg.Add(1)
		guard <- true // would block if guard channel is already filled
		go func(path string) {
			onFile(path)
			<-guard

			wg.Done()
		}(filePath)
	}
	wg.Wait()
	return nil
}
