// Package chunkstore maps the chunk search index onto domain candidates.
package chunkstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/answerd/internal/db"
	"github.com/kailas-cloud/answerd/internal/domain"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// reserved field names written by the ingestion service; everything else
// lands in Chunk.Metadata.
const (
	fieldText       = "text"
	fieldDocumentID = "document_id"
	fieldTitle      = "document_title"
	fieldSource     = "document_source"
	fieldTokenCount = "token_count"
	fieldPosition   = "position"
	fieldScore      = "__vector_score"
)

// fieldScore must be requested explicitly: with a RETURN clause RediSearch
// only sends the listed fields, and without it every KNN hit parses as
// score 0.
var returnFields = []string{
	fieldText, fieldDocumentID, fieldTitle, fieldSource, fieldTokenCount, fieldPosition,
	fieldScore,
}

// Repo implements usecase/retrieval.ChunkStore.
type Repo struct {
	store               store
	indexName           string
	keyPrefix           string
	similarityThreshold float64
}

// Config holds index addressing and vector filtering settings.
type Config struct {
	IndexName           string
	KeyPrefix           string
	SimilarityThreshold float64
}

// New creates a chunk store repository.
func New(s store, cfg Config) *Repo {
	return &Repo{
		store:               s,
		indexName:           cfg.IndexName,
		keyPrefix:           cfg.KeyPrefix,
		similarityThreshold: cfg.SimilarityThreshold,
	}
}

// VectorSearch returns up to topK chunks by embedding similarity. Hits below
// the similarity threshold are dropped; the threshold applies to this branch
// only.
func (r *Repo) VectorSearch(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := r.parseEntries(sr, domain.MethodVector)
	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Score >= r.similarityThreshold {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// LexicalSearch returns up to topK chunks by BM25 keyword relevance.
func (r *Repo) LexicalSearch(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.indexName,
		Query:        query,
		TopK:         topK,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	return r.parseEntries(sr, domain.MethodLexical), nil
}

func (r *Repo) parseEntries(sr *db.SearchResult, method domain.Method) []domain.Candidate {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	candidates := make([]domain.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		chunk := parseChunk(strings.TrimPrefix(entry.Key, r.keyPrefix), entry.Fields)
		candidates = append(candidates, domain.Candidate{
			Chunk:  chunk,
			Score:  entry.Score,
			Method: method,
		})
	}
	return candidates
}

func parseChunk(id string, fields map[string]string) domain.Chunk {
	chunk := domain.Chunk{ID: id}

	var metadata map[string]string
	for k, v := range fields {
		switch k {
		case fieldText:
			chunk.Text = v
		case fieldDocumentID:
			chunk.DocumentID = v
		case fieldTitle:
			chunk.DocumentTitle = v
		case fieldSource:
			chunk.DocumentSource = v
		case fieldTokenCount:
			if n, err := strconv.Atoi(v); err == nil {
				chunk.TokenCount = n
			}
		case fieldPosition:
			if n, err := strconv.Atoi(v); err == nil {
				chunk.Position = n
			}
		case fieldScore:
			// already surfaced as entry.Score
		default:
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[k] = v
		}
	}
	chunk.Metadata = metadata
	return chunk
}
