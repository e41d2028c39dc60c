package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/providentia/internal/rag"
)

func TestGenerate_SendsContextInRankOrder(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResp{Message: Message{Role: "assistant", Content: "answer"}})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "test-model")
	passages := []rag.Passage{
		{Source: "a", Text: "alpha"},
		{Source: "b", Text: "beta"},
	}
	answer, err := g.Generate(context.Background(), "q?", passages)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "answer" {
		t.Fatalf("answer = %q", answer)
	}

	if len(got.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(got.Messages))
	}
	user := got.Messages[1].Content
	if strings.Index(user, "alpha") > strings.Index(user, "beta") {
		t.Fatalf("passages out of rank order in prompt:\n%s", user)
	}
}

func TestGenerate_EmptyContextUsesUnsupportedPrompt(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ollamaChatResp{Message: Message{Content: "general answer"}})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "test-model")
	answer, err := g.Generate(context.Background(), "q?", nil)
	if err != nil {
		t.Fatalf("generate with empty context: %v", err)
	}
	if answer != "general answer" {
		t.Fatalf("answer = %q", answer)
	}
	if !strings.Contains(got.Messages[0].Content, "not backed by retrieved sources") {
		t.Fatalf("system prompt does not flag answer as unsupported:\n%s", got.Messages[0].Content)
	}
}

func TestGenerate_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusInternalServerError, KindUnavailable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		g := NewOllamaGenerator(srv.URL, "test-model")
		_, err := g.Generate(context.Background(), "q", nil)
		srv.Close()

		var ge *Error
		if !errors.As(err, &ge) {
			t.Fatalf("status %d: expected *ai.Error, got %v", tc.status, err)
		}
		if ge.Kind != tc.kind {
			t.Fatalf("status %d: kind = %q, want %q", tc.status, ge.Kind, tc.kind)
		}
	}
}

func TestGenerate_DeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server detects the client disconnect and
		// cancels the request context; otherwise srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "test-model")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, "q", nil)
	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *ai.Error, got %v", err)
	}
	if ge.Kind != KindTimeout {
		t.Fatalf("kind = %q, want %q", ge.Kind, KindTimeout)
	}
}

func TestRegistry_RoutesByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Ollama", func() (Generator, error) {
		return NewOllamaGenerator("http://localhost:11434", "m"), nil
	})

	if _, err := reg.Get("ollama"); err != nil {
		t.Fatalf("get registered provider: %v", err)
	}
	if _, err := reg.Get("nope"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
