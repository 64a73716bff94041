package domain

// EventType discriminates the streaming event union.
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

// Event is one element of the answer stream. Exactly one of the payload
// fields is meaningful, selected by Type.
type Event struct {
	Type      EventType
	Citations []Citation
	Token     string
	Answer    string
	Err       error
}

// Terminal reports whether the event closes the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Stream is a pull-based sequence of answer events. Recv returns io.EOF once
// the terminal event has been consumed. Close releases upstream resources;
// after Close no further events are produced.
type Stream interface {
	Recv() (Event, error)
	Close() error
}
