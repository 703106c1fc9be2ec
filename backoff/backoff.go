// Package backoff provides delay strategies for dispatcher loops that have
// to wait after a failure or while there is nothing to do.
//
// Strategies are stateless and safe for concurrent use. A [Tracker] pairs a
// strategy with a consecutive-failure counter for a single loop.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes how long a loop waits after its n-th consecutive
// failure (1-indexed).
type Strategy interface {
	Delay(n int) time.Duration
}

// Func adapts an ordinary function to a Strategy.
type Func func(n int) time.Duration

// Delay calls f(n).
func (f Func) Delay(n int) time.Duration { return f(n) }

// Constant waits the same interval after every failure.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear grows the wait by Initial per failure, capped at Max.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * n, capped at Max.
func (l *Linear) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := l.Initial * time.Duration(n)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential doubles the wait after each failure, capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(n-1), capped at Max.
func (e *Exponential) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	f := float64(e.Initial) * math.Pow(2, float64(n-1))
	if e.Max > 0 && f > float64(e.Max) {
		return e.Max
	}
	if f > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

// Jitter spreads another strategy's delay uniformly over
// [Delay*(1-Fraction), Delay]. Fraction 1 is full jitter.
type Jitter struct {
	Base     Strategy
	Fraction float64
}

// NewJitter wraps base with the given jitter fraction, clamped to [0, 1].
func NewJitter(base Strategy, fraction float64) *Jitter {
	return &Jitter{Base: base, Fraction: min(max(fraction, 0), 1)}
}

// Delay returns a randomised delay no larger than the base delay.
func (j *Jitter) Delay(n int) time.Duration {
	d := j.Base.Delay(n)
	if d <= 0 || j.Fraction == 0 {
		return d
	}
	spread := float64(d) * j.Fraction
	return d - time.Duration(rand.Float64()*spread) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// NewExponentialWithJitter is exponential growth with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *Jitter {
	return NewJitter(NewExponential(initial, maxDelay), 1)
}

// DefaultStrategy is the wait after a failed fetch: a constant 5s.
func DefaultStrategy() Strategy {
	return NewConstant(5 * time.Second)
}

// Tracker counts consecutive failures for one loop and maps them to a
// delay through a Strategy. It is not safe for concurrent use; each loop
// owns its own Tracker.
type Tracker struct {
	strategy Strategy
	failures int
}

// NewTracker creates a Tracker over s.
func NewTracker(s Strategy) *Tracker {
	return &Tracker{strategy: s}
}

// Failure records a failure and returns how long to wait before the
// next attempt.
func (t *Tracker) Failure() time.Duration {
	t.failures++
	return t.strategy.Delay(t.failures)
}

// Success clears the failure streak.
func (t *Tracker) Success() { t.failures = 0 }

// Failures returns the current streak length.
func (t *Tracker) Failures() int { return t.failures }
