package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/suPer8Hu/providentia/internal/rag"
)

type OllamaGenerator struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaGenerator{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResp struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

func (g *OllamaGenerator) Generate(ctx context.Context, question string, passages []rag.Passage) (string, error) {
	if g.Client == nil {
		return "", &Error{Kind: KindUnavailable, Err: errors.New("ollama: http client is nil")}
	}

	b, err := json.Marshal(ollamaChatReq{
		Model:    g.Model,
		Stream:   false,
		Messages: BuildMessages(question, passages),
	})
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}

	url := fmt.Sprintf("%s/api/chat", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", &Error{Kind: classifyTransportErr(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Kind: classifyStatus(resp.StatusCode),
			Err:  fmt.Errorf("ollama: status %d", resp.StatusCode),
		}
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}
	if decoded.Error != "" {
		return "", &Error{Kind: KindUnavailable, Err: errors.New(decoded.Error)}
	}
	return decoded.Message.Content, nil
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}

func classifyTransportErr(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}
