// Package embedding wraps the embedding provider with the retry, timeout and
// dimension guarantees the query pipeline relies on.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// Gateway decorates an Embedder with a per-call timeout, one bounded retry,
// and dimension verification. All provider failures surface as
// domain.ErrEmbeddingUnavailable; a wrong-width vector surfaces as
// domain.ErrEmbeddingDimMismatch and is never retried.
type Gateway struct {
	inner      domain.Embedder
	dimensions int
	timeout    time.Duration
	backoff    time.Duration
	logger     *zap.Logger
}

// Config holds gateway settings.
type Config struct {
	Dimensions int
	Timeout    time.Duration
	Backoff    time.Duration
}

// NewGateway wraps an embedder.
func NewGateway(inner domain.Embedder, cfg Config, logger *zap.Logger) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Gateway{
		inner:      inner,
		dimensions: cfg.Dimensions,
		timeout:    timeout,
		backoff:    backoff,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (g *Gateway) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	result, err := g.embedOnce(ctx, text)
	if err == nil {
		return g.verify(result)
	}
	if ctx.Err() != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}

	g.logger.Debug("Embedding attempt failed, retrying",
		zap.Duration("backoff", g.backoff),
		zap.Error(err),
	)

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %v: %w", ctx.Err(), domain.ErrEmbeddingUnavailable)
	case <-time.After(g.backoff):
	}

	result, err = g.embedOnce(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed after retry: %w", err)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed after retry: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	return g.verify(result)
}

func (g *Gateway) embedOnce(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.inner.Embed(callCtx, text)
}

func (g *Gateway) verify(result domain.EmbeddingResult) (domain.EmbeddingResult, error) {
	if g.dimensions > 0 && len(result.Embedding) != g.dimensions {
		return domain.EmbeddingResult{}, fmt.Errorf(
			"embedding has %d dimensions, index expects %d: %w",
			len(result.Embedding), g.dimensions, domain.ErrEmbeddingDimMismatch,
		)
	}
	return result, nil
}
