package domain

// PromptMessage is one role-tagged message of a generation request.
type PromptMessage struct {
	Role    Role
	Content string
}

// GenerationRequest is the fully assembled input for the LLM: system
// instruction, conversation history, context block, and the user query.
type GenerationRequest struct {
	Messages []PromptMessage
}

// TokenStream is a pull-based sequence of generated text deltas. Recv returns
// io.EOF when the model has finished. Close aborts an in-flight generation.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}
