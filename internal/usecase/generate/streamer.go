// Package generate drives the LLM and exposes the answer as an ordered event
// stream: one citations event, zero or more tokens, exactly one terminal
// done or error event.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/answerd/internal/domain"
	"github.com/kailas-cloud/answerd/internal/metrics"
)

// Streamer creates answer streams.
type Streamer struct {
	generator Generator
}

// New creates a streamer.
func New(generator Generator) *Streamer {
	return &Streamer{generator: generator}
}

// Stream returns the event stream for one answer. The citations event is
// emitted before the upstream generation is opened, so citations always
// arrive first even when the provider is down.
func (s *Streamer) Stream(
	ctx context.Context, req domain.GenerationRequest, citations []domain.Citation,
) domain.Stream {
	return &eventStream{
		ctx:       ctx,
		generator: s.generator,
		req:       req,
		citations: citations,
	}
}

// Collect drains a stream into a synchronous answer. An error event becomes
// the returned error; citations emitted before the failure are discarded
// with it.
func Collect(stream domain.Stream) (domain.Answer, error) {
	defer stream.Close()

	var answer domain.Answer
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return answer, nil
		}
		if err != nil {
			return domain.Answer{}, err
		}

		switch event.Type {
		case domain.EventCitations:
			answer.Citations = event.Citations
		case domain.EventDone:
			answer.Text = event.Answer
			return answer, nil
		case domain.EventError:
			return domain.Answer{}, event.Err
		case domain.EventToken:
			// full text arrives with the done event
		}
	}
}

// eventStream is a single-consumer stream; Recv and Close must not be called
// concurrently.
type eventStream struct {
	ctx       context.Context
	generator Generator
	req       domain.GenerationRequest
	citations []domain.Citation

	upstream      domain.TokenStream
	full          strings.Builder
	sentCitations bool
	terminal      bool
	closed        bool
}

func (s *eventStream) Recv() (domain.Event, error) {
	if s.terminal || s.closed {
		return domain.Event{}, io.EOF
	}

	if !s.sentCitations {
		s.sentCitations = true
		return domain.Event{Type: domain.EventCitations, Citations: s.citations}, nil
	}

	if s.upstream == nil {
		upstream, err := s.generator.Generate(s.ctx, s.req)
		if err != nil {
			return s.fail(err), nil
		}
		s.upstream = upstream
	}

	delta, err := s.upstream.Recv()
	if errors.Is(err, io.EOF) {
		s.terminal = true
		return domain.Event{Type: domain.EventDone, Answer: s.full.String()}, nil
	}
	if err != nil {
		return s.fail(err), nil
	}

	s.full.WriteString(delta)
	metrics.GenerationTokensTotal.Inc()
	return domain.Event{Type: domain.EventToken, Token: delta}, nil
}

func (s *eventStream) fail(err error) domain.Event {
	s.terminal = true
	if !errors.Is(err, domain.ErrGeneration) {
		err = fmt.Errorf("%v: %w", err, domain.ErrGeneration)
	}
	return domain.Event{Type: domain.EventError, Err: err}
}

func (s *eventStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.upstream != nil {
		return s.upstream.Close() //nolint:wrapcheck // delegating to the upstream stream
	}
	return nil
}
