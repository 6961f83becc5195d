package http

import (
	"math/rand"
	"time"
)

// CalculateBackoff returns exponential backoff duration with full jitter.
// Full jitter spreads out retries so many clients do not hammer the server
// in lockstep.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay

	if base > maxDelay {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}

	return time.Duration(rand.Int63n(int64(base)))
}
