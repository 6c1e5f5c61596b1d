package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var defaultLogger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if os.Getenv("ENV") == "production" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// SetLevel sets the level of the default logger
func SetLevel(level logrus.Level) {
	defaultLogger.SetLevel(level)
}

// For returns the logger entry scoped to the context, or a default entry when
// the context carries none. A nil context is allowed.
func For(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(defaultLogger)
	}
	if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
		return entry.WithContext(ctx)
	}
	return logrus.NewEntry(defaultLogger).WithContext(ctx)
}

// NewContextWithFields returns a context whose logger carries the given fields
func NewContextWithFields(parent context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(parent, contextKey{}, For(parent).WithFields(fields))
}
