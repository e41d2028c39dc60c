// Package rag consumes the external retrieval service that backs
// answers with source passages.
package rag

import "context"

// Passage is one retrieved source snippet. Order across a slice of
// passages is retrieval-rank order and must be preserved all the way to
// persistence.
type Passage struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// Retriever returns passages relevant to a question, best first. An
// empty slice is a valid result meaning "no relevant context found".
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]Passage, error)
}

// Error wraps a retrieval failure. Transient failures are worth a
// bounded retry; the rest are not.
type Error struct {
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "unavailable"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return "rag: " + kind + ": " + e.Err.Error()
	}
	return "rag: " + kind
}

func (e *Error) Unwrap() error { return e.Err }
