package answerd

import (
	"context"
	"io"

	"github.com/kailas-cloud/answerd/internal/domain"
	pipelineuc "github.com/kailas-cloud/answerd/internal/usecase/pipeline"
)

// EmbeddingResult is a vector produced by an embedding provider.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder converts text to a vector. Implement it to plug a custom
// embedding provider into the client.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Citation references the source chunk an answer was grounded in.
// Numbers are contiguous starting at 1 in final ranked order.
type Citation struct {
	Number         int
	ChunkID        string
	DocumentID     string
	DocumentTitle  string
	DocumentSource string
	Text           string
	Metadata       map[string]string
	Score          float64
	Reranked       bool
}

// SearchResult is one ranked chunk from the retrieval half of the pipeline.
type SearchResult struct {
	ChunkID        string
	DocumentID     string
	DocumentTitle  string
	DocumentSource string
	Text           string
	Score          float64
	Method         string
	Reranked       bool
}

// Answer is a complete generated answer with its citations.
type Answer struct {
	Text      string
	Citations []Citation
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// QueryOptions tunes a single query. A nil *QueryOptions uses defaults.
type QueryOptions struct {
	TopK    int
	History []Turn
}

// EventType discriminates streaming events.
type EventType string

const (
	// EventCitations carries the citation list; always the first event.
	EventCitations EventType = "citations"
	// EventToken carries one generated text delta.
	EventToken EventType = "token"
	// EventDone terminates a successful stream with the full answer text.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Event is one element of an answer stream.
type Event struct {
	Type      EventType
	Citations []Citation
	Token     string
	Answer    string
	Err       error
}

// Stream delivers answer events in order: citations first, then tokens,
// then exactly one done or error event. Recv returns io.EOF once the
// terminal event has been consumed.
type Stream struct {
	inner domain.Stream
}

// Recv returns the next event.
func (s *Stream) Recv() (Event, error) {
	event, err := s.inner.Recv()
	if err != nil {
		if err == io.EOF {
			return Event{}, io.EOF
		}
		return Event{}, err
	}
	return fromEvent(event), nil
}

// Close releases upstream resources. Safe to call at any point.
func (s *Stream) Close() error {
	return s.inner.Close()
}

func fromCitations(citations []domain.Citation) []Citation {
	out := make([]Citation, 0, len(citations))
	for _, c := range citations {
		out = append(out, Citation{
			Number:         c.Number,
			ChunkID:        c.ChunkID,
			DocumentID:     c.DocumentID,
			DocumentTitle:  c.DocumentTitle,
			DocumentSource: c.DocumentSource,
			Text:           c.Text,
			Metadata:       c.Metadata,
			Score:          c.Score,
			Reranked:       c.Reranked,
		})
	}
	return out
}

func fromSearchResults(results []pipelineuc.SearchResult) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ChunkID:        r.Chunk.ID,
			DocumentID:     r.Chunk.DocumentID,
			DocumentTitle:  r.Chunk.DocumentTitle,
			DocumentSource: r.Chunk.DocumentSource,
			Text:           r.Chunk.Text,
			Score:          r.Score,
			Method:         string(r.Method),
			Reranked:       r.Reranked,
		})
	}
	return out
}

func fromEvent(e domain.Event) Event {
	return Event{
		Type:      EventType(e.Type),
		Citations: fromCitations(e.Citations),
		Token:     e.Token,
		Answer:    e.Answer,
		Err:       e.Err,
	}
}

func toQueryRequest(query string, opts *QueryOptions) domain.QueryRequest {
	if opts == nil {
		opts = &QueryOptions{}
	}
	history := make([]domain.ConversationTurn, 0, len(opts.History))
	for _, turn := range opts.History {
		history = append(history, domain.ConversationTurn{
			Role:    domain.Role(turn.Role),
			Content: turn.Content,
		})
	}
	return domain.QueryRequest{
		Query:   query,
		TopK:    opts.TopK,
		History: history,
	}
}
