package resilience

import (
	"strings"
	"time"
)

type Backoff string

const (
	// BackoffLinear waits BaseDelay × retry number.
	BackoffLinear Backoff = "linear"
	// BackoffExponential waits BaseDelay × 2^(retry-1).
	BackoffExponential Backoff = "exponential"
	// BackoffFixed waits BaseDelay before every retry.
	BackoffFixed Backoff = "fixed"
)

func ParseBackoff(raw string) Backoff {
	switch Backoff(strings.ToLower(strings.TrimSpace(raw))) {
	case BackoffExponential:
		return BackoffExponential
	case BackoffFixed:
		return BackoffFixed
	default:
		return BackoffLinear
	}
}

type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Backoff    Backoff

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  1000 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Backoff:    BackoffLinear,

		BreakerEnabled:          false,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxRetries < 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.BaseDelay < 0 {
		out.BaseDelay = 0
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = def.MaxDelay
	}
	if out.MaxDelay < out.BaseDelay {
		out.MaxDelay = out.BaseDelay
	}
	switch out.Backoff {
	case BackoffLinear, BackoffExponential, BackoffFixed:
	default:
		out.Backoff = def.Backoff
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// Delay returns the wait before the given retry (1-based).
func (c Config) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	var wait time.Duration
	switch c.Backoff {
	case BackoffFixed:
		wait = c.BaseDelay
	case BackoffExponential:
		wait = c.BaseDelay
		for i := 1; i < retry && wait < c.MaxDelay; i++ {
			wait *= 2
		}
	default:
		wait = c.BaseDelay * time.Duration(retry)
	}
	if c.MaxDelay > 0 && wait > c.MaxDelay {
		wait = c.MaxDelay
	}
	return wait
}
