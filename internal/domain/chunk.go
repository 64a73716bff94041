package domain

// Method tags which retrieval branch surfaced a candidate.
type Method string

const (
	// MethodVector marks a hit from the vector similarity branch.
	MethodVector Method = "vector"
	// MethodLexical marks a hit from the lexical full-text branch.
	MethodLexical Method = "lexical"
	// MethodHybrid marks a hit present in both branches.
	MethodHybrid Method = "hybrid"
)

// Chunk is an immutable unit of ingested content. Chunks are written by the
// external ingestion service; this core only reads them.
type Chunk struct {
	ID             string
	DocumentID     string
	DocumentTitle  string
	DocumentSource string
	Text           string
	TokenCount     int
	Position       int
	Metadata       map[string]string
}

// Candidate associates a Chunk with its retrieval-stage score. It lives only
// for the duration of a single query.
type Candidate struct {
	Chunk  Chunk
	Score  float64
	Method Method
}

// RankedCandidate is a Candidate after the rerank stage. When Reranked is
// false the candidate kept its retrieval-stage order and RerankScore is zero.
type RankedCandidate struct {
	Candidate
	RerankScore float64
	Reranked    bool
	Position    int
}
