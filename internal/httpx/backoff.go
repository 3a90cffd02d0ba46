package httpx

import (
	"math"
	"math/rand"
	"time"
)

// backoffDelay returns the sleep before retry number attempt (0-indexed).
// Delays grow exponentially from base and are capped at max; jitter is a
// proportional factor in [0,1] applied symmetrically around the delay.
func backoffDelay(attempt int, base, max time.Duration, jitter float64) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max <= 0 {
		max = time.Second
	}

	delay := base
	if attempt > 0 {
		exp := float64(uint(1) << uint(attempt))
		delay = time.Duration(float64(base) * exp)
		if delay <= 0 || delay > max {
			delay = max
		}
	}

	if jitter <= 0 {
		return delay
	}
	factor := 1 + (rand.Float64()*2-1)*math.Min(jitter, 1)
	if factor < 0 {
		factor = 0
	}
	return time.Duration(float64(delay) * factor)
}
