package rerank

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
	"github.com/kailas-cloud/answerd/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

type mockScorer struct {
	scores  map[string]float64
	err     error
	batches [][]string
}

func (m *mockScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	m.batches = append(m.batches, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = m.scores[t]
	}
	return out, nil
}

func cand(id, text string, score float64) domain.Candidate {
	return domain.Candidate{
		Chunk:  domain.Chunk{ID: id, DocumentID: "d1", Text: text},
		Score:  score,
		Method: domain.MethodVector,
	}
}

func TestCrossEncoder_Reorders(t *testing.T) {
	scorer := &mockScorer{scores: map[string]float64{
		"about shipping": 0.2,
		"about refunds":  0.95,
		"about returns":  0.6,
	}}
	ce := NewCrossEncoder(scorer, CrossEncoderConfig{BatchSize: 32, MaxConcurrent: 2}, zap.NewNop())

	candidates := []domain.Candidate{
		cand("c1", "about shipping", 0.9),
		cand("c2", "about refunds", 0.8),
		cand("c3", "about returns", 0.7),
	}

	ranked := ce.Rerank(context.Background(), "refund policy", candidates, 3)

	wantOrder := []string{"c2", "c3", "c1"}
	for i, want := range wantOrder {
		if ranked[i].Chunk.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, ranked[i].Chunk.ID)
		}
		if !ranked[i].Reranked {
			t.Errorf("position %d: expected Reranked=true", i)
		}
		if ranked[i].Position != i+1 {
			t.Errorf("position %d: expected Position=%d, got %d", i, i+1, ranked[i].Position)
		}
	}
	if ranked[0].RerankScore != 0.95 {
		t.Errorf("expected rerank score 0.95, got %f", ranked[0].RerankScore)
	}
	// retrieval score stays intact alongside the rerank score
	if ranked[0].Score != 0.8 {
		t.Errorf("expected retrieval score preserved, got %f", ranked[0].Score)
	}
}

func TestCrossEncoder_TruncatesToTopK(t *testing.T) {
	scorer := &mockScorer{scores: map[string]float64{"a": 0.9, "b": 0.8, "c": 0.7}}
	ce := NewCrossEncoder(scorer, CrossEncoderConfig{BatchSize: 32, MaxConcurrent: 2}, zap.NewNop())

	ranked := ce.Rerank(context.Background(), "q", []domain.Candidate{
		cand("c1", "a", 0.5), cand("c2", "b", 0.5), cand("c3", "c", 0.5),
	}, 2)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
}

func TestCrossEncoder_Batches(t *testing.T) {
	scorer := &mockScorer{scores: map[string]float64{}}
	ce := NewCrossEncoder(scorer, CrossEncoderConfig{BatchSize: 2, MaxConcurrent: 2}, zap.NewNop())

	ce.Rerank(context.Background(), "q", []domain.Candidate{
		cand("c1", "a", 0.5), cand("c2", "b", 0.5), cand("c3", "c", 0.5),
	}, 3)

	if len(scorer.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(scorer.batches))
	}
	if len(scorer.batches[0]) != 2 || len(scorer.batches[1]) != 1 {
		t.Errorf("unexpected batch sizes: %d, %d", len(scorer.batches[0]), len(scorer.batches[1]))
	}
}

func TestCrossEncoder_FallbackOnScorerError(t *testing.T) {
	scorer := &mockScorer{err: errors.New("timeout")}
	ce := NewCrossEncoder(scorer, CrossEncoderConfig{BatchSize: 32, MaxConcurrent: 2}, zap.NewNop())

	candidates := []domain.Candidate{
		cand("c1", "a", 0.9),
		cand("c2", "b", 0.8),
		cand("c3", "c", 0.7),
	}

	ranked := ce.Rerank(context.Background(), "q", candidates, 2)

	// fallback keeps retrieval order, truncated to topK, Reranked=false
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].Chunk.ID != "c1" || ranked[1].Chunk.ID != "c2" {
		t.Errorf("fallback must keep input order: %s, %s", ranked[0].Chunk.ID, ranked[1].Chunk.ID)
	}
	for i, r := range ranked {
		if r.Reranked {
			t.Errorf("position %d: expected Reranked=false on fallback", i)
		}
	}
}

// shortScorer drops the last score of every batch.
type shortScorer struct{}

func (shortScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	return make([]float64, len(texts)-1), nil
}

func TestCrossEncoder_FallbackOnShortScoreVector(t *testing.T) {
	ce := NewCrossEncoder(shortScorer{}, CrossEncoderConfig{BatchSize: 32, MaxConcurrent: 2}, zap.NewNop())

	candidates := []domain.Candidate{
		cand("c1", "a", 0.9),
		cand("c2", "b", 0.8),
	}

	ranked := ce.Rerank(context.Background(), "q", candidates, 2)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].Chunk.ID != "c1" || ranked[1].Chunk.ID != "c2" {
		t.Errorf("fallback must keep input order: %s, %s", ranked[0].Chunk.ID, ranked[1].Chunk.ID)
	}
	for i, r := range ranked {
		if r.Reranked {
			t.Errorf("position %d: expected Reranked=false on fallback", i)
		}
	}
}

func TestCrossEncoder_FallbackWhenBusy(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	scorer := &blockingScorer{block: block, started: started}
	ce := NewCrossEncoder(scorer, CrossEncoderConfig{BatchSize: 32, MaxConcurrent: 1}, zap.NewNop())

	candidates := []domain.Candidate{cand("c1", "a", 0.9)}

	go ce.Rerank(context.Background(), "q", candidates, 1)
	<-started

	ranked := ce.Rerank(context.Background(), "q", candidates, 1)
	close(block)

	if len(ranked) != 1 || ranked[0].Reranked {
		t.Fatalf("expected passthrough result while busy, got %+v", ranked)
	}
}

type blockingScorer struct {
	block   chan struct{}
	started chan struct{}
}

func (b *blockingScorer) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	close(b.started)
	<-b.block
	return make([]float64, len(texts)), nil
}

func TestCrossEncoder_EmptyInput(t *testing.T) {
	ce := NewCrossEncoder(&mockScorer{}, CrossEncoderConfig{}, zap.NewNop())
	if got := ce.Rerank(context.Background(), "q", nil, 5); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestPassthrough_KeepsOrder(t *testing.T) {
	p := NewPassthrough()

	ranked := p.Rerank(context.Background(), "q", []domain.Candidate{
		cand("c1", "a", 0.9), cand("c2", "b", 0.8), cand("c3", "c", 0.7),
	}, 2)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].Chunk.ID != "c1" || ranked[1].Chunk.ID != "c2" {
		t.Errorf("unexpected order: %s, %s", ranked[0].Chunk.ID, ranked[1].Chunk.ID)
	}
	for i, r := range ranked {
		if r.Reranked {
			t.Errorf("position %d: passthrough must not mark Reranked", i)
		}
		if r.Position != i+1 {
			t.Errorf("position %d: expected Position=%d, got %d", i, i+1, r.Position)
		}
	}
}
