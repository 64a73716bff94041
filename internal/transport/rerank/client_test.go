package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/answerd/internal/domain"
)

func TestClient_Score(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "refund policy" {
			t.Errorf("unexpected query: %q", req.Query)
		}
		if len(req.Texts) != 2 {
			t.Fatalf("expected 2 texts, got %d", len(req.Texts))
		}

		// sorted by score, indices refer to input order
		json.NewEncoder(w).Encode([]rerankResult{
			{Index: 1, Score: 0.95},
			{Index: 0, Score: 0.42},
		})
	}))
	defer server.Close()

	c := NewClient(&Config{URL: server.URL})
	scores, err := c.Score(context.Background(), "refund policy", []string{"shipping", "refunds"})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if scores[0] != 0.42 || scores[1] != 0.95 {
		t.Errorf("scores not restored to input order: %v", scores)
	}
}

func TestClient_Score_Empty(t *testing.T) {
	c := NewClient(&Config{URL: "http://unused"})
	scores, err := c.Score(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores != nil {
		t.Errorf("expected nil scores for empty input, got %v", scores)
	}
}

func TestClient_Score_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(&Config{URL: server.URL})
	_, err := c.Score(context.Background(), "q", []string{"a"})
	if !errors.Is(err, domain.ErrRerank) {
		t.Fatalf("expected ErrRerank, got %v", err)
	}
}

func TestClient_Score_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 0.5}})
	}))
	defer server.Close()

	c := NewClient(&Config{URL: server.URL})
	_, err := c.Score(context.Background(), "q", []string{"a", "b"})
	if !errors.Is(err, domain.ErrRerank) {
		t.Fatalf("expected ErrRerank for count mismatch, got %v", err)
	}
}

func TestClient_Score_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(&Config{URL: server.URL, Timeout: 10 * time.Millisecond})
	_, err := c.Score(context.Background(), "q", []string{"a"})
	if !errors.Is(err, domain.ErrRerank) {
		t.Fatalf("expected ErrRerank on timeout, got %v", err)
	}
}
