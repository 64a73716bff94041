package domain

// Citation is the externally visible reference from an answer back to the
// source chunk it was grounded in. Numbers are contiguous starting at 1,
// assigned in final ranked order, and never reused within one answer.
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

// Role is a conversation participant.
type Role string

const (
	// RoleUser marks a turn authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn authored by the assistant.
	RoleAssistant Role = "assistant"
	// RoleSystem marks the system instruction in a generation request.
	RoleSystem Role = "system"
)

// ConversationTurn is one prior message supplied by the caller as context.
// The core never mutates turns.
type ConversationTurn struct {
	Role      Role
	Content   string
	Citations []Citation
}

// QueryRequest scopes a single pipeline invocation.
type QueryRequest struct {
	Query   string
	TopK    int
	History []ConversationTurn
}

// Answer is the result of the synchronous answer path.
type Answer struct {
	Text      string
	Citations []Citation
}
