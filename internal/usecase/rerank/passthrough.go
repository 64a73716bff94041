package rerank

import (
	"context"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// Passthrough keeps the retrieval order. Used when no reranker is configured
// and as the fallback path of the cross-encoder.
type Passthrough struct{}

// NewPassthrough creates a no-op strategy.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Rerank truncates to topK without changing the order.
func (p *Passthrough) Rerank(
	_ context.Context, _ string, candidates []domain.Candidate, topK int,
) []domain.RankedCandidate {
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	ranked := make([]domain.RankedCandidate, 0, len(candidates))
	for i, c := range candidates {
		ranked = append(ranked, domain.RankedCandidate{
			Candidate: c,
			Reranked:  false,
			Position:  i + 1,
		})
	}
	return ranked
}
