package configcat

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Define the logrus log levels
const (
	LogLevelPanic = logrus.PanicLevel
	LogLevelFatal = logrus.FatalLevel
	LogLevelError = logrus.ErrorLevel
	LogLevelWarn  = logrus.WarnLevel
	LogLevelInfo  = logrus.InfoLevel
	LogLevelDebug = logrus.DebugLevel
	LogLevelTrace = logrus.TraceLevel

	// LogLevelNone turns off all logging, including errors.
	LogLevelNone LogLevel = math.MaxUint32
)

type LogLevel = logrus.Level

// Logger defines the interface this library logs with.
type Logger interface {
	// GetLevel returns the current logging level.
	GetLevel() LogLevel

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultLogger creates the default logger with specified log level (logrus.New()).
func DefaultLogger(level LogLevel) Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	return logger
}

// leveledLogger wraps a Logger for efficiency reasons: it's a static type
// rather than an interface so the compiler can inline the level check
// and thus avoid the allocation for the arguments.
//
// Messages other than debug ones carry a numeric event id so that
// they're easy to search for.
type leveledLogger struct {
	level LogLevel
	off   bool
	Logger
	hooks *Hooks
}

// newLeveledLogger returns a logger writing to logger. If level is zero,
// the level of logger itself is used.
func newLeveledLogger(logger Logger, level LogLevel, hooks *Hooks) *leveledLogger {
	if logger == nil {
		if level == 0 || level == LogLevelNone {
			logger = DefaultLogger(LogLevelWarn)
		} else {
			logger = DefaultLogger(level)
		}
	}
	if level == 0 {
		level = logger.GetLevel()
	}
	return &leveledLogger{
		level:  level,
		off:    level == LogLevelNone,
		Logger: logger,
		hooks:  hooks,
	}
}

func (log *leveledLogger) enabled(level LogLevel) bool {
	return log != nil && !log.off && level <= log.level
}

func (log *leveledLogger) Debugf(format string, args ...interface{}) {
	if log.enabled(LogLevelDebug) {
		log.Logger.Debugf(format, args...)
	}
}

func (log *leveledLogger) Infof(eventID int, format string, args ...interface{}) {
	if log.enabled(LogLevelInfo) {
		log.Logger.Infof("[%d] %s", eventID, fmt.Sprintf(format, args...))
	}
}

func (log *leveledLogger) Warnf(eventID int, format string, args ...interface{}) {
	if log.enabled(LogLevelWarn) {
		log.Logger.Warnf("[%d] %s", eventID, fmt.Sprintf(format, args...))
	}
}

// Errorf logs an error and reports it to the OnError hook, whether or
// not error logging is enabled. Arguments are formatted with fmt.Errorf,
// so %w may be used to wrap an error.
func (log *leveledLogger) Errorf(eventID int, format string, args ...interface{}) {
	if log == nil {
		return
	}
	err := fmt.Errorf(format, args...)
	if log.enabled(LogLevelError) {
		log.Logger.Errorf("[%d] %v", eventID, err)
	}
	log.hooks.invokeOnError(log, err)
}
