package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPRetriever talks to the vector-search service. The service embeds
// the query and answers with passages ranked best-first; this client
// never reorders them.
type HTTPRetriever struct {
	BaseURL  string
	TopK     int
	MinScore float64
	Client   *http.Client
}

func NewHTTPRetriever(baseURL string, topK int, minScore float64) *HTTPRetriever {
	if topK <= 0 {
		topK = 8
	}
	return &HTTPRetriever{
		BaseURL:  baseURL,
		TopK:     topK,
		MinScore: minScore,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type searchReq struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

type searchResp struct {
	Passages []Passage `json:"passages"`
	Error    string    `json:"error,omitempty"`
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, question string) ([]Passage, error) {
	if r.Client == nil {
		return nil, &Error{Err: errors.New("retriever: http client is nil")}
	}

	b, err := json.Marshal(searchReq{Query: question, TopK: r.TopK, MinScore: r.MinScore})
	if err != nil {
		return nil, &Error{Err: err}
	}

	url := fmt.Sprintf("%s/search", r.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		// connection failures and deadline hits are retryable
		return nil, &Error{Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("retriever: status %d", resp.StatusCode),
		}
	}

	var decoded searchResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Transient: true, Err: err}
	}
	if decoded.Error != "" {
		return nil, &Error{Err: errors.New(decoded.Error)}
	}

	// nil means "no relevant context", which downstream must treat as a
	// valid empty result
	if decoded.Passages == nil {
		return []Passage{}, nil
	}
	return decoded.Passages, nil
}
