package taskdispatch

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskdispatch/backoff"
	"github.com/xraph/taskdispatch/ext"
	"github.com/xraph/taskdispatch/middleware"
)

// Option configures a Dispatcher.
type Option func(*settings) error

// settings collects everything New needs before it builds a dispatcher.
type settings struct {
	config         Config
	logger         *slog.Logger
	fetchBackoff   backoff.Strategy
	middleware     []middleware.Middleware
	extensions     []ext.Extension
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func defaultSettings() *settings {
	return &settings{
		config:       DefaultConfig(),
		logger:       slog.Default(),
		fetchBackoff: backoff.DefaultStrategy(),
	}
}

// WithConfig replaces the whole configuration. A zero Concurrency and
// zero intervals take their defaults. Later options still apply on top
// of it.
func WithConfig(cfg Config) Option {
	return func(s *settings) error {
		s.config = cfg.withDefaults()
		return nil
	}
}

// WithConcurrency sets the number of execute loops and the work queue
// high watermark. n must be positive.
func WithConcurrency(n int) Option {
	return func(s *settings) error {
		if n <= 0 {
			return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfiguration, n)
		}
		s.config.Concurrency = n
		return nil
	}
}

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidConfiguration)
		}
		s.logger = l
		return nil
	}
}

// WithIntervals overrides the loop waits. Zero fields keep their current
// value.
func WithIntervals(iv Intervals) Option {
	return func(s *settings) error {
		cur := &s.config.Intervals
		set := func(dst *time.Duration, v time.Duration) {
			if v != 0 {
				*dst = v
			}
		}
		set(&cur.Full, iv.Full)
		set(&cur.Empty, iv.Empty)
		set(&cur.ExecuteIdle, iv.ExecuteIdle)
		set(&cur.DeliverIdle, iv.DeliverIdle)
		set(&cur.DeliverPanic, iv.DeliverPanic)
		return nil
	}
}

// WithFetchBackoff sets the wait after a failed fetch. The strategy is
// given the number of consecutive failures.
func WithFetchBackoff(b backoff.Strategy) Option {
	return func(s *settings) error {
		if b == nil {
			return fmt.Errorf("%w: nil fetch backoff", ErrInvalidConfiguration)
		}
		s.fetchBackoff = b
		return nil
	}
}

// WithFetchRateLimit limits fetch calls to perSecond with the given burst.
func WithFetchRateLimit(perSecond float64, burst int) Option {
	return func(s *settings) error {
		if perSecond < 0 || burst < 0 {
			return fmt.Errorf("%w: fetch rate limit must not be negative", ErrInvalidConfiguration)
		}
		s.config.FetchRateLimit = perSecond
		s.config.FetchRateBurst = burst
		return nil
	}
}

// WithMaxAttempts drops an item once a callback has run n times for it,
// even if the last failure was retryable. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(s *settings) error {
		if n < 0 {
			return fmt.Errorf("%w: max attempts must not be negative, got %d", ErrInvalidConfiguration, n)
		}
		s.config.MaxAttempts = n
		return nil
	}
}

// WithMiddleware appends middleware to the callback chain. Middleware
// added first runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *settings) error {
		s.middleware = append(s.middleware, mws...)
		return nil
	}
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(s *settings) error {
		if e == nil {
			return fmt.Errorf("%w: nil extension", ErrInvalidConfiguration)
		}
		s.extensions = append(s.extensions, e)
		return nil
	}
}

// WithMeterProvider records per-callback and lifecycle metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) error {
		s.meterProvider = mp
		return nil
	}
}

// WithTracerProvider wraps every callback in a span from tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) error {
		s.tracerProvider = tp
		return nil
	}
}
