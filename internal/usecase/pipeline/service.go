// Package pipeline orchestrates one query through embedding, retrieval,
// reranking, assembly and generation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
	"github.com/kailas-cloud/answerd/internal/logger"
	"github.com/kailas-cloud/answerd/internal/metrics"
	"github.com/kailas-cloud/answerd/internal/usecase/assemble"
	"github.com/kailas-cloud/answerd/internal/usecase/generate"
)

// Config holds pipeline tuning.
type Config struct {
	TopKCandidates int
	TopKFinal      int
}

// SearchResult is one ranked hit of the search entry point.
type SearchResult struct {
	Chunk    domain.Chunk
	Score    float64
	Method   domain.Method
	Reranked bool
}

// Service is the query orchestrator.
type Service struct {
	embedder  Embedder
	retriever Retriever
	reranker  Reranker
	assembler Assembler
	prompts   PromptBuilder
	streamer  Streamer
	cfg       Config
	logger    *zap.Logger
}

// New creates a pipeline service.
func New(
	embedder Embedder,
	retriever Retriever,
	reranker Reranker,
	assembler Assembler,
	prompts PromptBuilder,
	streamer Streamer,
	cfg Config,
	log *zap.Logger,
) *Service {
	if cfg.TopKCandidates <= 0 {
		cfg.TopKCandidates = 30
	}
	if cfg.TopKFinal <= 0 {
		cfg.TopKFinal = 5
	}
	return &Service{
		embedder:  embedder,
		retriever: retriever,
		reranker:  reranker,
		assembler: assembler,
		prompts:   prompts,
		streamer:  streamer,
		cfg:       cfg,
		logger:    log,
	}
}

// Search runs the retrieval half of the pipeline and returns ranked chunks
// without generating an answer.
func (s *Service) Search(ctx context.Context, req domain.QueryRequest) ([]SearchResult, error) {
	run := newStateMachine()
	log := logger.WithRunID(s.logger, uuid.NewString())

	ranked, err := s.rank(ctx, run, log, req)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(ranked))
	for _, rc := range ranked {
		score := rc.Score
		if rc.Reranked {
			score = rc.RerankScore
		}
		results = append(results, SearchResult{
			Chunk:    rc.Chunk,
			Score:    score,
			Method:   rc.Method,
			Reranked: rc.Reranked,
		})
	}
	return results, nil
}

// Answer runs the full pipeline synchronously by draining the stream.
func (s *Service) Answer(ctx context.Context, req domain.QueryRequest) (domain.Answer, error) {
	stream, err := s.AnswerStream(ctx, req)
	if err != nil {
		return domain.Answer{}, err
	}
	return generate.Collect(stream)
}

// AnswerStream runs the pipeline up to generation and returns the event
// stream. Embedding and retrieval failures are returned as errors before any
// event is produced; generation failures arrive as the stream's terminal
// error event.
func (s *Service) AnswerStream(ctx context.Context, req domain.QueryRequest) (domain.Stream, error) {
	run := newStateMachine()
	log := logger.WithRunID(s.logger, uuid.NewString())

	ranked, err := s.rank(ctx, run, log, req)
	if err != nil {
		return nil, err
	}

	if err := run.transition(StateAssembling); err != nil {
		return nil, err
	}
	assembled := runStage(run, "assemble", func() (assemble.Result, error) {
		return s.assembler.Assemble(ranked), nil
	})
	if assembled.Context == "" {
		log.Debug("Empty context, answering from the no-context prompt")
	}

	prompt := s.prompts.Build(req.Query, assembled.Context, req.History)

	if err := run.transition(StateGenerating); err != nil {
		return nil, err
	}
	log.Debug("Generation started",
		zap.Int("citations", len(assembled.Citations)),
		zap.Int("prompt_messages", len(prompt.Messages)),
	)

	return &trackedStream{
		Stream: s.streamer.Stream(ctx, prompt, assembled.Citations),
		run:    run,
		start:  time.Now(),
		logger: log,
	}, nil
}

// rank drives the embedding, retrieval and rerank stages.
func (s *Service) rank(
	ctx context.Context, run *stateMachine, log *zap.Logger, req domain.QueryRequest,
) ([]domain.RankedCandidate, error) {
	if req.Query == "" {
		_ = run.transition(StateFailed)
		return nil, fmt.Errorf("query must not be empty")
	}
	topKFinal := req.TopK
	if topKFinal <= 0 {
		topKFinal = s.cfg.TopKFinal
	} else if topKFinal > s.cfg.TopKCandidates {
		topKFinal = s.cfg.TopKCandidates
	}

	if err := run.transition(StateEmbedding); err != nil {
		return nil, err
	}
	embedding, err := failingStage(run, "embedding", func() (domain.EmbeddingResult, error) {
		return s.embedder.Embed(ctx, req.Query)
	})
	if err != nil {
		log.Error("Embedding failed", zap.Error(err))
		return nil, err
	}

	if err := run.transition(StateRetrieving); err != nil {
		return nil, err
	}
	candidates, err := failingStage(run, "retrieval", func() ([]domain.Candidate, error) {
		return s.retriever.Retrieve(ctx, req.Query, embedding.Embedding, s.cfg.TopKCandidates)
	})
	if err != nil {
		log.Error("Retrieval failed", zap.Error(err))
		return nil, err
	}
	metrics.RetrievedCandidates.WithLabelValues("merged").Observe(float64(len(candidates)))

	if err := run.transition(StateReranking); err != nil {
		return nil, err
	}
	ranked := runStage(run, "rerank", func() ([]domain.RankedCandidate, error) {
		return s.reranker.Rerank(ctx, req.Query, candidates, topKFinal), nil
	})

	log.Debug("Candidates ranked",
		zap.Int("retrieved", len(candidates)),
		zap.Int("ranked", len(ranked)),
	)
	return ranked, nil
}

// failingStage times a stage whose error fails the run.
func failingStage[T any](run *stateMachine, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	observeStage(name, start, err)
	if err != nil {
		_ = run.transition(StateFailed)
	}
	return result, err
}

// runStage times a stage that cannot fail.
func runStage[T any](_ *stateMachine, name string, fn func() (T, error)) T {
	start := time.Now()
	result, _ := fn()
	observeStage(name, start, nil)
	return result
}

func observeStage(name string, start time.Time, err error) {
	metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.PipelineStageTotal.WithLabelValues(name, outcome).Inc()
}

// trackedStream finishes the run's state machine and generation metrics when
// the terminal event passes through.
type trackedStream struct {
	domain.Stream
	run    *stateMachine
	start  time.Time
	logger *zap.Logger
	done   bool
}

func (t *trackedStream) Recv() (domain.Event, error) {
	event, err := t.Stream.Recv()
	if err != nil {
		return event, err
	}
	if event.Terminal() && !t.done {
		t.done = true
		metrics.PipelineStageDuration.WithLabelValues("generation").Observe(time.Since(t.start).Seconds())
		if event.Type == domain.EventError {
			_ = t.run.transition(StateFailed)
			metrics.PipelineStageTotal.WithLabelValues("generation", metrics.OutcomeError).Inc()
			t.logger.Warn("Generation failed", zap.Error(event.Err))
		} else {
			_ = t.run.transition(StateDone)
			metrics.PipelineStageTotal.WithLabelValues("generation", metrics.OutcomeSuccess).Inc()
			t.logger.Debug("Generation finished", zap.Int("answer_len", len(event.Answer)))
		}
	}
	return event, nil
}
