package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a logical unit of work within a request trace.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	attrs  []any
}

// StartSpan derives a child span from ctx. The returned context carries a logger
// tagged with the trace and span ids. The trace id defaults to the request id.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)
	parent := traceFromContext(ctx)

	current := trace{traceID: parent.traceID, spanID: uuid.NewString()}
	if current.traceID == "" {
		current.traceID = RequestIDFromContext(ctx)
		if current.traceID == "" {
			current.traceID = uuid.NewString()
		}
		logger = logger.With(slog.String("trace_id", current.traceID))
	}

	logger = logger.With(
		slog.String("span_id", current.spanID),
		slog.String("span_name", name),
	)
	if parent.spanID != "" {
		logger = logger.With(slog.String("parent_span_id", parent.spanID))
	}

	ctx = context.WithValue(ctx, traceKey, current)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Set records attributes emitted when the span ends.
func (s *Span) Set(attrs ...any) {
	if s == nil {
		return
	}
	s.attrs = append(s.attrs, attrs...)
}

// End emits a completion entry. A non-nil err is logged at warn level.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	attrs := append([]any{slog.Duration("duration", time.Since(s.start))}, s.attrs...)
	if err != nil {
		s.logger.Warn("span failed", append(attrs, slog.Any("error", err))...)
		return
	}
	s.logger.Debug("span completed", attrs...)
}
