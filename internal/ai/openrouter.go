package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/providentia/internal/rag"
)

type OpenRouterGenerator struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

func NewOpenRouterGenerator(baseURL, apiKey, model, siteURL, appName string) *OpenRouterGenerator {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterGenerator{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type openRouterChatReq struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, question string, passages []rag.Passage) (string, error) {
	if g.Client == nil {
		return "", &Error{Kind: KindUnavailable, Err: errors.New("openrouter: http client is nil")}
	}
	if strings.TrimSpace(g.APIKey) == "" {
		return "", &Error{Kind: KindUnavailable, Err: errors.New("openrouter: api key is required")}
	}
	model := strings.TrimSpace(g.Model)
	if model == "" {
		return "", &Error{Kind: KindUnavailable, Err: errors.New("openrouter: model is required")}
	}

	b, err := json.Marshal(openRouterChatReq{
		Model:    model,
		Stream:   false,
		Messages: BuildMessages(question, passages),
	})
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(g.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	if g.SiteURL != "" {
		req.Header.Set("HTTP-Referer", g.SiteURL)
	}
	if g.AppName != "" {
		req.Header.Set("X-Title", g.AppName)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", &Error{Kind: classifyTransportErr(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", &Error{
			Kind: classifyStatus(resp.StatusCode),
			Err:  fmt.Errorf("openrouter: %s", msg),
		}
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindUnavailable, Err: err}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &Error{Kind: KindUnavailable, Err: errors.New(decoded.Error.Message)}
	}
	if len(decoded.Choices) == 0 {
		return "", &Error{Kind: KindUnavailable, Err: errors.New("openrouter: empty response")}
	}
	return decoded.Choices[0].Message.Content, nil
}
