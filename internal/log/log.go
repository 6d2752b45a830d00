// Package log initializes the process-wide loggers: a logrus logger for
// the legacy Logger interface and the default slog logger used by the
// newer packages. Both write to the same destinations.
package log

import (
	"sync"
)

// Logger is the leveled logging interface handed out by GetLogger.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process logger. When Init has not been called yet,
// it calls Init with info level and text format, writing to stdout.
func GetLogger() Logger {
	if logger == nil {
		Init(&Config{Level: "info", Format: "text"})
	}
	return logger
}

// Init initializes the loggers from configuration. Only the first call has
// an effect.
func Init(cfg *Config) {
	once.Do(func() {
		if err := initByConfig(cfg); err != nil {
			panic(err)
		}
	})
}
