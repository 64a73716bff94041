package chunkstore

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/answerd/internal/db"
	"github.com/kailas-cloud/answerd/internal/domain"
)

type mockStore struct {
	knnResult  *db.SearchResult
	knnErr     error
	knnQuery   *db.KNNQuery
	bm25Result *db.SearchResult
	bm25Err    error
	bm25Query  *db.TextQuery
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnQuery = q
	return m.knnResult, m.knnErr
}

func (m *mockStore) SearchBM25(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	m.bm25Query = q
	return m.bm25Result, m.bm25Err
}

func entry(key string, score float64, fields map[string]string) db.SearchEntry {
	return db.SearchEntry{Key: key, Score: score, Fields: fields}
}

func TestVectorSearch_MapsAndFilters(t *testing.T) {
	store := &mockStore{
		knnResult: &db.SearchResult{
			Total: 3,
			Entries: []db.SearchEntry{
				entry("chunk:c1", 0.9, map[string]string{
					"text":            "refund within 30 days",
					"document_id":     "d1",
					"document_title":  "Refund Policy",
					"document_source": "policies/refund.md",
					"token_count":     "12",
					"position":        "0",
					"page":            "3",
				}),
				entry("chunk:c2", 0.5, map[string]string{"text": "shipping", "document_id": "d2"}),
				entry("chunk:c3", 0.1, map[string]string{"text": "irrelevant", "document_id": "d3"}),
			},
		},
	}

	repo := New(store, Config{IndexName: "idx:chunks", KeyPrefix: "chunk:", SimilarityThreshold: 0.3})
	got, err := repo.VectorSearch(context.Background(), []float32{0.1, 0.2}, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.knnQuery.IndexName != "idx:chunks" || store.knnQuery.K != 30 {
		t.Errorf("unexpected query: %+v", store.knnQuery)
	}

	// c3 is below the 0.3 threshold
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates after threshold, got %d", len(got))
	}

	c1 := got[0]
	if c1.Chunk.ID != "c1" {
		t.Errorf("expected key prefix stripped, got %q", c1.Chunk.ID)
	}
	if c1.Chunk.DocumentTitle != "Refund Policy" || c1.Chunk.TokenCount != 12 {
		t.Errorf("fields not mapped: %+v", c1.Chunk)
	}
	if c1.Chunk.Metadata["page"] != "3" {
		t.Errorf("expected extra field in metadata, got %v", c1.Chunk.Metadata)
	}
	if c1.Method != domain.MethodVector {
		t.Errorf("expected vector method, got %s", c1.Method)
	}
	if c1.Score != 0.9 {
		t.Errorf("expected score 0.9, got %f", c1.Score)
	}
}

func TestVectorSearch_Error(t *testing.T) {
	wantErr := errors.New("connection refused")
	repo := New(&mockStore{knnErr: wantErr}, Config{IndexName: "idx", KeyPrefix: "chunk:"})

	_, err := repo.VectorSearch(context.Background(), []float32{0.1}, 10)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestLexicalSearch_Maps(t *testing.T) {
	store := &mockStore{
		bm25Result: &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				entry("chunk:c2", 1.7, map[string]string{"text": "refund policy", "document_id": "d1", "position": "1"}),
			},
		},
	}

	repo := New(store, Config{IndexName: "idx:chunks", KeyPrefix: "chunk:", SimilarityThreshold: 0.3})
	got, err := repo.LexicalSearch(context.Background(), "refund policy", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.bm25Query.Query != "refund policy" || store.bm25Query.TopK != 30 {
		t.Errorf("unexpected query: %+v", store.bm25Query)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Method != domain.MethodLexical {
		t.Errorf("expected lexical method, got %s", got[0].Method)
	}
	// BM25 scores are not similarities and must not be thresholded
	if got[0].Score != 1.7 {
		t.Errorf("expected score 1.7, got %f", got[0].Score)
	}
}

func TestSearch_EmptyResults(t *testing.T) {
	store := &mockStore{
		knnResult:  &db.SearchResult{Total: 0},
		bm25Result: &db.SearchResult{Total: 0},
	}
	repo := New(store, Config{IndexName: "idx", KeyPrefix: "chunk:"})

	vec, err := repo.VectorSearch(context.Background(), []float32{0.1}, 10)
	if err != nil || len(vec) != 0 {
		t.Errorf("expected empty vector result, got %v, %v", vec, err)
	}
	lex, err := repo.LexicalSearch(context.Background(), "q", 10)
	if err != nil || len(lex) != 0 {
		t.Errorf("expected empty lexical result, got %v, %v", lex, err)
	}
}
