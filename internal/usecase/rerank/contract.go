package rerank

import (
	"context"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// Scorer scores query/passage pairs. Implemented by the cross-encoder
// transport client.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Strategy orders candidates for the final context. Implementations never
// return an error: when scoring fails the input order is preserved and the
// results are tagged Reranked=false.
type Strategy interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, topK int) []domain.RankedCandidate
}
