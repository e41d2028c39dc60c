// Package ratelimit admits or rejects requests per principal over a
// fixed window: the first request seen for a principal opens a window of
// length T; while it is open at most N requests are admitted; once it
// elapses the next request opens a fresh one.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission attempt. RetryAfter is only
// meaningful when Allowed is false and is always positive and at most
// the window length.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter tracks per-principal request counts. Implementations must make
// the read-modify-write on a principal's counter atomic with respect to
// concurrent calls for the same principal.
type Limiter interface {
	Admit(ctx context.Context, principal string) (Decision, error)
}
