// Package dlog threads a structured logger through a context.Context, the
// way distribution's internal/dcontext package does. A pull or push that
// touches many packets and locations can attach fields once (the location
// name, say) and have every subsequent log line in that scope carry them,
// rather than repeating them at every call site.
package dlog

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled-logging interface carried through a context.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithError(err error) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// entryLogger adapts *logrus.Entry to the Logger interface, since Entry's
// With* methods return *Entry rather than an interface type.
type entryLogger struct {
	*logrus.Entry
}

func wrap(e *logrus.Entry) Logger { return entryLogger{e} }

func (l entryLogger) WithError(err error) Logger { return wrap(l.Entry.WithError(err)) }
func (l entryLogger) WithField(key string, value interface{}) Logger {
	return wrap(l.Entry.WithField(key, value))
}
func (l entryLogger) WithFields(fields map[string]interface{}) Logger {
	return wrap(l.Entry.WithFields(logrus.Fields(fields)))
}

var (
	defaultLogger   = wrap(logrus.StandardLogger().WithField("go.version", runtime.Version()))
	defaultLoggerMu sync.RWMutex
)

type loggerKey struct{}

// WithLogger returns a context carrying logger, replacing the context's
// default logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithValues returns a context whose logger has the given fields attached.
func WithValues(ctx context.Context, values map[string]interface{}) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(values))
}

// WithField is WithValues for a single key/value pair.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithField(key, value))
}

// GetLogger returns the context's logger, or the package default if none has
// been attached.
func GetLogger(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
			return logger
		}
	}
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetLevel adjusts the level of the package-default logger, used by the CLI
// entrypoint before any context-scoped logger has been established.
func SetLevel(level logrus.Level) {
	logrus.SetLevel(level)
}

// SetFormatter adjusts the formatter of the package-default logger.
func SetFormatter(formatter logrus.Formatter) {
	logrus.SetFormatter(formatter)
}
