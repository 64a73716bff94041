package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
)

type citationsEvent struct {
	Citations []citationResponse `json:"citations"`
}

type tokenEvent struct {
	Token string `json:"token"`
}

type doneEvent struct {
	Answer string `json:"answer"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// AnswerStream handles POST /answer/stream. Events arrive as SSE frames:
// a citations frame first, then token frames, then exactly one done or
// error frame.
func (s *Server) AnswerStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming not supported")
		return
	}

	stream, err := s.pipeline.AnswerStream(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	defer func() { _ = stream.Close() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		event, err := stream.Recv()
		if err != nil {
			// io.EOF after the terminal event, or the client went away.
			return
		}
		if writeErr := writeSSE(w, flusher, event); writeErr != nil {
			s.logger.Debug("client disconnected mid-stream", zap.Error(writeErr))
			return
		}
	}
}

// writeSSE serializes one event as an SSE frame and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event domain.Event) error {
	var payload any
	switch event.Type {
	case domain.EventCitations:
		payload = citationsEvent{Citations: citationsToResponse(event.Citations)}
	case domain.EventToken:
		payload = tokenEvent{Token: event.Token}
	case domain.EventDone:
		payload = doneEvent{Answer: event.Answer}
	case domain.EventError:
		payload = errorEvent{Error: safeDomainMessage(event.Err)}
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
