package queue

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AdmissionConfig controls how much new work a producer may add to a queue.
type AdmissionConfig struct {
	// HighWatermark is the queue depth at or above which new work is
	// refused. Zero disables the depth check.
	HighWatermark int

	// RateLimit is the maximum sustained number of admissions per second.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Verdict is the outcome of an admission check.
type Verdict int

const (
	// Admitted means the producer may add work now.
	Admitted Verdict = iota
	// Full means the queue is at or above its high watermark.
	Full
	// Throttled means the rate limit has no token available yet.
	Throttled
)

// String returns a lowercase name for the verdict.
func (v Verdict) String() string {
	switch v {
	case Admitted:
		return "admitted"
	case Full:
		return "full"
	case Throttled:
		return "throttled"
	default:
		return "unknown"
	}
}

// Admission gates a producer against a queue's depth and an optional
// token-bucket rate. It is safe for concurrent use.
type Admission struct {
	mu      sync.Mutex
	config  AdmissionConfig
	limiter *rate.Limiter
}

// NewAdmission creates an Admission with the given configuration.
func NewAdmission(cfg AdmissionConfig) *Admission {
	a := &Admission{}
	a.apply(cfg)
	return a
}

func (a *Admission) apply(cfg AdmissionConfig) {
	a.config = cfg
	a.limiter = nil
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
}

// Check decides whether a producer may add work to a queue currently
// holding depth elements. When the verdict is Throttled the returned
// duration is how long until a token becomes available; otherwise it is
// zero. An Admitted verdict consumes one rate token.
func (a *Admission) Check(depth int) (Verdict, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.HighWatermark > 0 && depth >= a.config.HighWatermark {
		return Full, 0
	}

	if a.limiter != nil {
		r := a.limiter.Reserve()
		if d := r.Delay(); d > 0 {
			r.Cancel()
			return Throttled, d
		}
	}

	return Admitted, 0
}

// Reconfigure replaces the configuration. Rate limiter state is reset.
func (a *Admission) Reconfigure(cfg AdmissionConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apply(cfg)
}

// Config returns the current configuration.
func (a *Admission) Config() AdmissionConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config
}
