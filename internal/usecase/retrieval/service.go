// Package retrieval merges vector and lexical search results into one
// candidate set.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// Service runs both retrieval branches and merges their hits.
type Service struct {
	store  ChunkStore
	logger *zap.Logger
}

// New creates a retrieval service.
func New(store ChunkStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Retrieve returns up to topK candidates for the query. A chunk surfaced by
// both branches keeps its vector score and is tagged hybrid. An empty result
// from both branches is a valid outcome, not an error.
func (s *Service) Retrieve(
	ctx context.Context, query string, vector []float32, topK int,
) ([]domain.Candidate, error) {
	vec, err := s.store.VectorSearch(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector branch: %v", domain.ErrRetrieval, err)
	}

	lex, err := s.store.LexicalSearch(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: lexical branch: %v", domain.ErrRetrieval, err)
	}

	merged := merge(vec, lex)

	s.logger.Debug("Retrieval merged",
		zap.Int("vector_hits", len(vec)),
		zap.Int("lexical_hits", len(lex)),
		zap.Int("merged", len(merged)),
	)

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// merge unions the branches by chunk ID and sorts by score descending.
// Ties are broken by (document ID, chunk position) so results are stable
// across runs.
func merge(vec, lex []domain.Candidate) []domain.Candidate {
	merged := make([]domain.Candidate, 0, len(vec)+len(lex))
	byID := make(map[string]int, len(vec))

	for _, c := range vec {
		byID[c.Chunk.ID] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range lex {
		if i, ok := byID[c.Chunk.ID]; ok {
			merged[i].Method = domain.MethodHybrid
			continue
		}
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.Position < b.Chunk.Position
	})

	return merged
}
