package method

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type options struct {
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
	meter  metric.Meter
}

func defaultOptions() options {
	return options{
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  newUUIDv7,
		tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
}

// Option configures a Method at Define time.
type Option func(*options)

// WithLogger sets the logger used for per-call debug and failure logs.
// Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the source of Entry timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator sets the source of Result.CallID. Default: UUIDv7.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithTracer sets the tracer that receives one span per call. Default: no-op.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMeter sets the meter used for call and record counters. Default: no-op.
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// newUUIDv7 returns a time-sortable call ID.
func newUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
