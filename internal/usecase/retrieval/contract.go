package retrieval

import (
	"context"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// ChunkStore defines the index contract for hybrid retrieval.
type ChunkStore interface {
	VectorSearch(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error)
	LexicalSearch(ctx context.Context, query string, topK int) ([]domain.Candidate, error)
}
