// Package assemble turns ranked candidates into the context block and the
// citation list that ground the generated answer.
package assemble

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/answerd/internal/domain"
)

// charsPerToken approximates token counts for chunks ingested without one.
const charsPerToken = 4

// Result is the assembled context and its citations. Citation numbers are
// contiguous from 1 and match the [Source N] labels in the context block.
type Result struct {
	Context   string
	Citations []domain.Citation
}

// Assembler builds the context block under a token budget.
type Assembler struct {
	tokenBudget int
}

// New creates an assembler. budget is the maximum context size in tokens.
func New(tokenBudget int) *Assembler {
	if tokenBudget <= 0 {
		tokenBudget = 3000
	}
	return &Assembler{tokenBudget: tokenBudget}
}

// Assemble deduplicates ranked candidates, numbers them in order, and formats
// the context block. Candidates past the token budget are dropped. The output
// is a pure function of the input: assembling the same ranking twice yields
// byte-identical context and identical citations.
func (a *Assembler) Assemble(ranked []domain.RankedCandidate) Result {
	var blocks []string
	var citations []domain.Citation
	seen := make(map[string]struct{}, len(ranked))
	budget := a.tokenBudget

	for _, rc := range ranked {
		chunk := rc.Chunk
		if _, dup := seen[chunk.ID]; dup {
			continue
		}

		tokens := chunk.TokenCount
		if tokens <= 0 {
			tokens = len(chunk.Text) / charsPerToken
		}
		if tokens > budget && len(citations) > 0 {
			break
		}
		budget -= tokens

		seen[chunk.ID] = struct{}{}
		number := len(citations) + 1

		blocks = append(blocks, fmt.Sprintf("[Source %d: %s]\n%s", number, chunk.DocumentTitle, chunk.Text))

		score := rc.Score
		if rc.Reranked {
			score = rc.RerankScore
		}
		citations = append(citations, domain.Citation{
			Number:         number,
			ChunkID:        chunk.ID,
			DocumentID:     chunk.DocumentID,
			DocumentTitle:  chunk.DocumentTitle,
			DocumentSource: chunk.DocumentSource,
			Text:           chunk.Text,
			Metadata:       chunk.Metadata,
			Score:          score,
			Reranked:       rc.Reranked,
		})
	}

	return Result{
		Context:   strings.Join(blocks, "\n\n"),
		Citations: citations,
	}
}
