// Package prompt assembles the generation request from context, history and
// the user query. Pure, no I/O.
package prompt

import (
	"fmt"

	"github.com/kailas-cloud/answerd/internal/domain"
)

const systemInstruction = "You are a helpful AI assistant. Use the following context to answer " +
	"the user's question. Answer only from the provided context. If the context does not " +
	"contain enough information to answer, say so instead of guessing."

// noContextMarker replaces the context block when retrieval found nothing.
const noContextMarker = "No relevant information found in the knowledge base."

// Builder constructs generation requests.
type Builder struct{}

// New creates a prompt builder.
func New() *Builder {
	return &Builder{}
}

// Build produces the message sequence for the LLM: system instruction,
// prior turns in order, then the user message carrying the context block and
// the question.
func (b *Builder) Build(query, contextBlock string, history []domain.ConversationTurn) domain.GenerationRequest {
	messages := make([]domain.PromptMessage, 0, len(history)+2)
	messages = append(messages, domain.PromptMessage{
		Role:    domain.RoleSystem,
		Content: systemInstruction,
	})

	for _, turn := range history {
		role := turn.Role
		if role != domain.RoleAssistant {
			role = domain.RoleUser
		}
		messages = append(messages, domain.PromptMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	if contextBlock == "" {
		contextBlock = noContextMarker
	}
	messages = append(messages, domain.PromptMessage{
		Role:    domain.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, query),
	})

	return domain.GenerationRequest{Messages: messages}
}
