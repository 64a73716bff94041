// Package rerank reorders retrieval candidates by cross-encoder relevance,
// degrading to the retrieval order when the scorer is unavailable.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
	"github.com/kailas-cloud/answerd/internal/metrics"
)

// CrossEncoder scores candidates in batches through a Scorer. Concurrency is
// bounded by worker slots; when all slots are busy the request degrades
// immediately instead of queueing behind other queries.
type CrossEncoder struct {
	scorer    Scorer
	batchSize int
	slots     chan struct{}
	logger    *zap.Logger
}

// CrossEncoderConfig holds cross-encoder settings.
type CrossEncoderConfig struct {
	BatchSize     int
	MaxConcurrent int
}

// NewCrossEncoder creates a cross-encoder strategy.
func NewCrossEncoder(scorer Scorer, cfg CrossEncoderConfig, logger *zap.Logger) *CrossEncoder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &CrossEncoder{
		scorer:    scorer,
		batchSize: batchSize,
		slots:     make(chan struct{}, maxConcurrent),
		logger:    logger,
	}
}

// Rerank scores all candidates against the query and reorders them by
// cross-encoder score. Any failure falls back to the input order with
// Reranked=false; the caller cannot tell a disabled reranker from a broken
// one except through the Reranked flag and the fallback metric.
func (ce *CrossEncoder) Rerank(
	ctx context.Context, query string, candidates []domain.Candidate, topK int,
) []domain.RankedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	select {
	case ce.slots <- struct{}{}:
		defer func() { <-ce.slots }()
	default:
		ce.logger.Warn("Reranker busy, keeping retrieval order",
			zap.Int("candidates", len(candidates)),
		)
		metrics.RerankFallbackTotal.WithLabelValues("busy").Inc()
		return NewPassthrough().Rerank(ctx, query, candidates, topK)
	}

	scores, err := ce.scoreBatched(ctx, query, candidates)
	if err != nil {
		ce.logger.Warn("Rerank scoring failed, keeping retrieval order",
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		metrics.RerankFallbackTotal.WithLabelValues("score_error").Inc()
		return NewPassthrough().Rerank(ctx, query, candidates, topK)
	}

	ranked := make([]domain.RankedCandidate, 0, len(candidates))
	for i, c := range candidates {
		ranked = append(ranked, domain.RankedCandidate{
			Candidate:   c,
			RerankScore: scores[i],
			Reranked:    true,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}

func (ce *CrossEncoder) scoreBatched(
	ctx context.Context, query string, candidates []domain.Candidate,
) ([]float64, error) {
	scores := make([]float64, 0, len(candidates))

	for offset := 0; offset < len(candidates); offset += ce.batchSize {
		end := offset + ce.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		texts := make([]string, 0, end-offset)
		for _, c := range candidates[offset:end] {
			texts = append(texts, c.Chunk.Text)
		}

		batchScores, err := ce.scorer.Score(ctx, query, texts)
		if err != nil {
			return nil, err
		}
		if len(batchScores) != len(texts) {
			return nil, fmt.Errorf("scorer returned %d scores for %d texts", len(batchScores), len(texts))
		}
		scores = append(scores, batchScores...)
	}

	return scores, nil
}
