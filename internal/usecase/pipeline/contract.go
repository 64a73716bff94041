package pipeline

import (
	"context"

	"github.com/kailas-cloud/answerd/internal/domain"
	"github.com/kailas-cloud/answerd/internal/usecase/assemble"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Retriever runs the hybrid search and returns merged candidates.
type Retriever interface {
	Retrieve(ctx context.Context, query string, vector []float32, topK int) ([]domain.Candidate, error)
}

// Reranker orders candidates for the final context. It never fails; degraded
// results carry Reranked=false.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, topK int) []domain.RankedCandidate
}

// Assembler builds the context block and citations.
type Assembler interface {
	Assemble(ranked []domain.RankedCandidate) assemble.Result
}

// PromptBuilder constructs the generation request.
type PromptBuilder interface {
	Build(query, contextBlock string, history []domain.ConversationTurn) domain.GenerationRequest
}

// Streamer opens the answer event stream.
type Streamer interface {
	Stream(ctx context.Context, req domain.GenerationRequest, citations []domain.Citation) domain.Stream
}
