// Package ai consumes the external generation model that turns a
// question plus retrieved context into an answer.
package ai

import (
	"context"

	"github.com/suPer8Hu/providentia/internal/rag"
)

// Generator produces an answer for a question conditioned on the given
// passages. An empty passage list is valid: the model answers from
// general knowledge and the prompt flags the answer as unsupported by
// sources. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, question string, passages []rag.Passage) (string, error)
}

type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate-limited"
	KindUnavailable ErrorKind = "unavailable"
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "ai: " + string(e.Kind) + ": " + e.Err.Error()
	}
	return "ai: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }
