package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that the embedding service is
	// unreachable or timed out. Fatal for the query.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrEmbeddingDimMismatch signals an embedding of unexpected dimension.
	ErrEmbeddingDimMismatch = errors.New("embedding dimension mismatch")
	// ErrRetrieval signals that the chunk store is unreachable. Fatal.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrRerank signals a cross-encoder scoring failure. Recovered locally,
	// never surfaced to callers.
	ErrRerank = errors.New("rerank failed")
	// ErrGeneration signals an LLM failure before or during streaming.
	ErrGeneration = errors.New("generation failed")
)
