// Package logger builds the service's zap logger and the adapters that hang
// off it.
package logger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger at the given level. Development mode switches to
// the console encoder with caller and stack traces.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// SecurityLogger forwards unprotect security warnings to zap.
type SecurityLogger struct {
	*zap.SugaredLogger
}

// NewSecurityLogger wraps l for use with unprotect.WithLogger.
func NewSecurityLogger(l *zap.Logger) *SecurityLogger {
	return &SecurityLogger{SugaredLogger: l.Named("security").Sugar()}
}

// WarnContext logs msg with alternating key/value args. A request ID stored
// in ctx is attached when present.
func (l *SecurityLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	if id := RequestID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	l.Warnw(msg, args...)
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
