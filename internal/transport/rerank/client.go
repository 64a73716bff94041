// Package rerank talks to a TEI-compatible cross-encoder scoring service.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// Client scores query/passage pairs via the HTTP /rerank endpoint.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// Config holds reranker service settings.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// NewClient creates a reranker client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.URL,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one relevance score per text, in input order.
// All failures are wrapped with domain.ErrRerank.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", domain.ErrRerank)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", domain.ErrRerank)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %v: %w", err, domain.ErrRerank)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank service returned %d: %s: %w", resp.StatusCode, msg, domain.ErrRerank)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode rerank response: %v: %w", err, domain.ErrRerank)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("rerank returned %d scores for %d texts: %w", len(results), len(texts), domain.ErrRerank)
	}

	// The service may return results sorted by score; restore input order.
	scores := make([]float64, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, fmt.Errorf("rerank returned out-of-range index %d: %w", r.Index, domain.ErrRerank)
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}
