package core

import (
	"context"
	"time"

	"seem/internal/scaling"
)

// Logger is the structured logging surface the service writes to. Arguments
// after the message are alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the service's notion of now.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. Times are always returned in UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ServiceOption configures optional collaborators on a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	snapshots SnapshotStore
	catalog   *scaling.Catalog
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		clock:   ClockFunc(nil),
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
}

// WithLogger sets the service logger. Nil restores the no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger == nil {
			logger = noopLogger{}
		}
		o.logger = logger
	}
}

// WithClock overrides the clock used to time operations.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock == nil {
			clock = ClockFunc(nil)
		}
		o.clock = clock
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder == nil {
			recorder = noopMetricsRecorder{}
		}
		o.metrics = recorder
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer == nil {
			tracer = noopTracer{}
		}
		o.tracer = tracer
	}
}

// WithSnapshotStore enables WarmTables and PersistTables.
func WithSnapshotStore(store SnapshotStore) ServiceOption {
	return func(o *serviceOptions) { o.snapshots = store }
}

// WithCatalog replaces the default catalog, for example one built with
// species parameter overrides.
func WithCatalog(catalog *scaling.Catalog) ServiceOption {
	return func(o *serviceOptions) { o.catalog = catalog }
}
