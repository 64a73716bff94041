package answerd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/answerd/internal/db/redis"
	"github.com/kailas-cloud/answerd/internal/domain"
	"github.com/kailas-cloud/answerd/internal/repository/chunkstore"
	openaiTransport "github.com/kailas-cloud/answerd/internal/transport/openai"
	rerankTransport "github.com/kailas-cloud/answerd/internal/transport/rerank"
	"github.com/kailas-cloud/answerd/internal/usecase/assemble"
	embeddinguc "github.com/kailas-cloud/answerd/internal/usecase/embedding"
	"github.com/kailas-cloud/answerd/internal/usecase/generate"
	pipelineuc "github.com/kailas-cloud/answerd/internal/usecase/pipeline"
	"github.com/kailas-cloud/answerd/internal/usecase/prompt"
	rerankuc "github.com/kailas-cloud/answerd/internal/usecase/rerank"
	retrievaluc "github.com/kailas-cloud/answerd/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the answerd SDK entry point.
type Client struct {
	store    *dbRedis.Store
	pipeline *pipelineuc.Service
}

// New creates a Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		embeddingModel:      "text-embedding-3-small",
		embeddingDimensions: 1536,
		generationModel:     "gpt-4o-mini",
		temperature:         0.7,
		maxTokens:           1024,
		indexName:           "idx:chunks",
		keyPrefix:           "chunk:",
		similarityThreshold: 0.3,
		contextTokenBudget:  3000,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("answerd: database address required (use WithRedis)")
	}
	if cfg.embedder == nil && cfg.apiKey == "" {
		return nil, errors.New("answerd: provider API key required (use WithOpenAI or WithEmbedder)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("answerd: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("answerd: database not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func wireClient(store *dbRedis.Store, cfg *clientConfig) *Client {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var embedder domain.Embedder
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	} else {
		embedder = openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.embeddingDimensions,
			Logger:     logger,
		})
	}
	gateway := embeddinguc.NewGateway(embedder, embeddinguc.Config{
		Dimensions: cfg.embeddingDimensions,
	}, logger)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.apiKey,
		BaseURL:     cfg.baseURL,
		Model:       cfg.generationModel,
		Temperature: cfg.temperature,
		MaxTokens:   cfg.maxTokens,
		Logger:      logger,
	})

	var reranker rerankuc.Strategy = rerankuc.NewPassthrough()
	if cfg.rerankerURL != "" {
		scorer := rerankTransport.NewClient(&rerankTransport.Config{
			URL:   cfg.rerankerURL,
			Model: cfg.rerankerModel,
		})
		reranker = rerankuc.NewCrossEncoder(scorer, rerankuc.CrossEncoderConfig{}, logger)
	}

	chunkRepo := chunkstore.New(store, chunkstore.Config{
		IndexName:           cfg.indexName,
		KeyPrefix:           cfg.keyPrefix,
		SimilarityThreshold: cfg.similarityThreshold,
	})

	pipeline := pipelineuc.New(
		gateway,
		retrievaluc.New(chunkRepo, logger),
		reranker,
		assemble.New(cfg.contextTokenBudget),
		prompt.New(),
		generate.New(generator),
		pipelineuc.Config{
			TopKCandidates: cfg.topKCandidates,
			TopKFinal:      cfg.topKFinal,
		},
		logger,
	)

	return &Client{store: store, pipeline: pipeline}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search runs the retrieval half of the pipeline and returns ranked chunks
// without generating an answer.
func (c *Client) Search(ctx context.Context, query string, opts *QueryOptions) ([]SearchResult, error) {
	results, err := c.pipeline.Search(ctx, toQueryRequest(query, opts))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromSearchResults(results), nil
}

// Answer runs the full pipeline and returns the complete answer.
func (c *Client) Answer(ctx context.Context, query string, opts *QueryOptions) (Answer, error) {
	answer, err := c.pipeline.Answer(ctx, toQueryRequest(query, opts))
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	return Answer{Text: answer.Text, Citations: fromCitations(answer.Citations)}, nil
}

// AnswerStream runs the full pipeline and streams the answer as it is
// generated. The caller must Close the stream.
func (c *Client) AnswerStream(ctx context.Context, query string, opts *QueryOptions) (*Stream, error) {
	stream, err := c.pipeline.AnswerStream(ctx, toQueryRequest(query, opts))
	if err != nil {
		return nil, fmt.Errorf("answer stream: %w", err)
	}
	return &Stream{inner: stream}, nil
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
