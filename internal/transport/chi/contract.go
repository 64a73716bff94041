package chi

import (
	"context"

	"github.com/kailas-cloud/answerd/internal/domain"
	healthuc "github.com/kailas-cloud/answerd/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/answerd/internal/usecase/pipeline"
)

// Pipeline is the query pipeline consumed by the HTTP handlers.
type Pipeline interface {
	Search(ctx context.Context, req domain.QueryRequest) ([]pipelineuc.SearchResult, error)
	Answer(ctx context.Context, req domain.QueryRequest) (domain.Answer, error)
	AnswerStream(ctx context.Context, req domain.QueryRequest) (domain.Stream, error)
}

// Health reports aggregated component health.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}
