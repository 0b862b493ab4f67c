package relay

import (
	"math"
	"time"
)

// Backoff computes the delay before the next delivery of a request.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
}

// DefaultBackoff returns the standard backoff configuration.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay: 1 * time.Second,
		MaxDelay:  30 * time.Minute,
		Factor:    2.0,
	}
}

// NextDelay calculates the delay after the given number of recorded attempts.
// The curve is exponential and capped at MaxDelay.
func (b Backoff) NextDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := float64(b.BaseDelay) * math.Pow(b.Factor, float64(attempts-1))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	return time.Duration(delay)
}
