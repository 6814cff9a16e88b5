package infra

import (
	"time"
)

const (
	dialBaseDelay = 1 * time.Second
	dialMaxDelay  = 60 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: baseDelay * 2^retryCount, capped at the maximum. Negative
// counts map to the base delay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return dialBaseDelay
	}

	// 2^30s already exceeds any sane cap; avoid shift overflow beyond that.
	if retryCount > 30 {
		return dialMaxDelay
	}

	backoff := dialBaseDelay * time.Duration(1<<retryCount)
	if backoff > dialMaxDelay {
		return dialMaxDelay
	}
	return backoff
}
