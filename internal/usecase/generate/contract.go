package generate

import (
	"context"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// Generator opens a token stream for a generation request. Implemented by
// the OpenAI-compatible transport.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.TokenStream, error)
}
