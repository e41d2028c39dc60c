package chat

import (
	"fmt"
	"time"
)

// Reason is the stable code surfaced to clients when the pipeline
// aborts. Raw upstream error detail stays in logs, never in responses.
type Reason string

const (
	ReasonUnauthenticated       Reason = "unauthenticated"
	ReasonRateLimited           Reason = "rate-limited"
	ReasonInvalidQuestion       Reason = "invalid-question"
	ReasonRetrievalUnavailable  Reason = "retrieval-unavailable"
	ReasonGenerationUnavailable Reason = "generation-unavailable"
	ReasonTimeout               Reason = "request-timeout"
)

// Abort is the typed outcome of a pipeline that did not complete. State
// records how far the request got; RetryAfter is set only for
// rate-limited aborts.
type Abort struct {
	State      State
	Reason     Reason
	RetryAfter time.Duration
	Err        error
}

func (a *Abort) Error() string {
	return fmt.Sprintf("chat: aborted at %s: %s", a.State, a.Reason)
}

func (a *Abort) Unwrap() error { return a.Err }
