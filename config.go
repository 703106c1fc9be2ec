package taskdispatch

import (
	"fmt"
	"runtime"
	"time"
)

// Intervals are the waits the dispatcher loops use when they have nothing
// useful to do.
type Intervals struct {
	// Full is how long the fetch loop waits when the work queue is at its
	// high watermark.
	Full time.Duration

	// Empty is how long the fetch loop waits after a fetch returned no items.
	Empty time.Duration

	// ExecuteIdle is the longest an execute loop waits on an empty work
	// queue before polling again. An enqueue wakes it earlier.
	ExecuteIdle time.Duration

	// DeliverIdle is the longest the deliver loop waits on an empty result
	// queue before polling again. An enqueue wakes it earlier.
	DeliverIdle time.Duration

	// DeliverPanic is how long the deliver loop pauses after the deliver
	// callback panicked.
	DeliverPanic time.Duration
}

// Config holds configuration for a Dispatcher. It is fixed once the
// dispatcher is constructed, except for the fetch rate limit, which
// Dispatcher.SetFetchRateLimit may change.
type Config struct {
	// Concurrency is the number of execute loops and the high watermark
	// of the work queue.
	Concurrency int

	// Intervals are the idle and recovery waits of each loop.
	Intervals Intervals

	// MaxAttempts caps how many times a callback runs for one item before
	// a retryable failure is treated as permanent. Zero means unbounded.
	MaxAttempts int

	// FetchRateLimit is the maximum sustained number of fetch calls per
	// second. Zero disables rate limiting.
	FetchRateLimit float64

	// FetchRateBurst is the burst size for the fetch rate limit.
	FetchRateBurst int
}

// DefaultConcurrency is min(16, NumCPU+4).
func DefaultConcurrency() int {
	return min(16, runtime.NumCPU()+4)
}

// DefaultIntervals returns the default loop waits.
func DefaultIntervals() Intervals {
	return Intervals{
		Full:         2 * time.Second,
		Empty:        1 * time.Second,
		ExecuteIdle:  3 * time.Second,
		DeliverIdle:  2 * time.Second,
		DeliverPanic: 1 * time.Second,
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency(),
		Intervals:   DefaultIntervals(),
	}
}

// withDefaults returns c with a zero Concurrency and zero intervals
// replaced by their defaults.
func (c Config) withDefaults() Config {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency()
	}
	c.Intervals = c.Intervals.withDefaults()
	return c
}

func (iv Intervals) withDefaults() Intervals {
	def := DefaultIntervals()
	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill(&iv.Full, def.Full)
	fill(&iv.Empty, def.Empty)
	fill(&iv.ExecuteIdle, def.ExecuteIdle)
	fill(&iv.DeliverIdle, def.DeliverIdle)
	fill(&iv.DeliverPanic, def.DeliverPanic)
	return iv
}

// Validate reports the first invalid field, wrapped in
// ErrInvalidConfiguration. Every interval must be positive.
func (c Config) Validate() error {
	switch {
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfiguration, c.Concurrency)
	case c.MaxAttempts < 0:
		return fmt.Errorf("%w: max attempts must not be negative, got %d", ErrInvalidConfiguration, c.MaxAttempts)
	case c.FetchRateLimit < 0:
		return fmt.Errorf("%w: fetch rate limit must not be negative", ErrInvalidConfiguration)
	}

	iv := c.Intervals
	for name, d := range map[string]time.Duration{
		"full":          iv.Full,
		"empty":         iv.Empty,
		"execute idle":  iv.ExecuteIdle,
		"deliver idle":  iv.DeliverIdle,
		"deliver panic": iv.DeliverPanic,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s interval must be positive, got %s", ErrInvalidConfiguration, name, d)
		}
	}
	return nil
}
