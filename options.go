package answerd

import "go.uber.org/zap"

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	apiKey  string
	baseURL string

	embeddingModel      string
	embeddingDimensions int

	generationModel string
	temperature     float32
	maxTokens       int

	rerankerURL   string
	rerankerModel string

	indexName string
	keyPrefix string

	topKCandidates      int
	topKFinal           int
	similarityThreshold float64
	contextTokenBudget  int

	embedder Embedder

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithOpenAI sets the API key and base URL shared by the embedding and
// generation providers. An empty baseURL uses the public OpenAI endpoint.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
	})
}

// WithEmbeddingModel sets the embedding model and its vector dimensions.
// Defaults to text-embedding-3-small with 1536 dimensions.
func WithEmbeddingModel(model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
		c.embeddingDimensions = dimensions
	})
}

// WithGenerationModel sets the chat model used to generate answers.
// Defaults to gpt-4o-mini.
func WithGenerationModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.generationModel = model
	})
}

// WithGenerationParams sets sampling temperature and the answer token cap.
func WithGenerationParams(temperature float32, maxTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	})
}

// WithReranker enables cross-encoder reranking through the given service.
// Without it candidates keep retrieval order and report Reranked=false.
func WithReranker(url, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankerURL = url
		c.rerankerModel = model
	})
}

// WithIndex sets the search index name and the key prefix the ingestion
// service writes chunks under. Defaults: "idx:chunks" and "chunk:".
func WithIndex(name, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.keyPrefix = keyPrefix
	})
}

// WithTopK sets how many candidates retrieval gathers and how many survive
// ranking. Defaults: 30 candidates, 5 final.
func WithTopK(candidates, final int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topKCandidates = candidates
		c.topKFinal = final
	})
}

// WithSimilarityThreshold sets the minimum cosine similarity for the vector
// retrieval branch. Lexical hits are not filtered. Default: 0.3.
func WithSimilarityThreshold(threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.similarityThreshold = threshold
	})
}

// WithContextTokenBudget caps the assembled context size. Default: 3000.
func WithContextTokenBudget(budget int) Option {
	return optionFunc(func(c *clientConfig) {
		c.contextTokenBudget = budget
	})
}

// WithEmbedder replaces the OpenAI embedding provider with a custom one.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithLogger enables structured logging for pipeline operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
