// Package logger wraps a process-wide charmbracelet logger writing to stderr
package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "evdevkm",
	})

	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel sets the level from its name. Unknown or empty names fall back to INFO.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		Logger.SetLevel(log.DebugLevel)
	case "WARN", "WARNING":
		Logger.SetLevel(log.WarnLevel)
	case "ERROR":
		Logger.SetLevel(log.ErrorLevel)
	default:
		Logger.SetLevel(log.InfoLevel)
	}
}

// SetVerbose forces debug output, used by the --verbose flag
func SetVerbose(verbose bool) {
	if verbose {
		Logger.SetLevel(log.DebugLevel)
	}
}

// With returns a child logger carrying the given key/value pairs
func With(keyvals ...interface{}) *log.Logger {
	return Logger.With(keyvals...)
}

func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}
