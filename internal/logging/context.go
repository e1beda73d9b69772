package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	traceKey
)

// trace identifies the innermost span on a request.
type trace struct {
	traceID string
	spanID  string
}

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// With enriches the request-scoped logger with attrs.
func With(ctx context.Context, attrs ...any) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return WithLogger(ctx, FromContext(ctx).With(attrs...))
}

// WithRequestID stores a request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves a previously stored request identifier.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// TraceIDFromContext retrieves the trace identifier of the current span.
func TraceIDFromContext(ctx context.Context) string {
	return traceFromContext(ctx).traceID
}

// SpanIDFromContext retrieves the identifier of the current span.
func SpanIDFromContext(ctx context.Context) string {
	return traceFromContext(ctx).spanID
}

func traceFromContext(ctx context.Context) trace {
	if ctx == nil {
		return trace{}
	}
	t, _ := ctx.Value(traceKey).(trace)
	return t
}
