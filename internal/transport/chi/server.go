// Package chi is the HTTP transport for the question-answering API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
	healthuc "github.com/kailas-cloud/answerd/internal/usecase/health"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ServerInfo is static metadata reported by the health endpoint.
type ServerInfo struct {
	Version         string
	EmbeddingModel  string
	GenerationModel string
}

// Server exposes the query pipeline over HTTP.
type Server struct {
	pipeline      Pipeline
	health        Health
	info          ServerInfo
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, health Health, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_unavailable"),
		sentinelHandler(domain.ErrEmbeddingDimMismatch, http.StatusBadGateway, "embedding_dim_mismatch"),
		sentinelHandler(domain.ErrRetrieval, http.StatusServiceUnavailable, "retrieval_error"),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, "generation_error"),
	}
	return s
}

// WithInfo sets the metadata reported by the health endpoint.
func (s *Server) WithInfo(info ServerInfo) *Server {
	s.info = info
	return s
}

// Routes mounts the API endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.Search)
	r.Post("/answer", s.Answer)
	r.Post("/answer/stream", s.AnswerStream)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// --- request/response DTOs ---

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Query   string        `json:"query"`
	TopK    int           `json:"top_k,omitempty"`
	History []historyTurn `json:"history,omitempty"`
}

type citationResponse struct {
	Number         int               `json:"number"`
	ChunkID        string            `json:"chunk_id"`
	DocumentID     string            `json:"document_id"`
	DocumentTitle  string            `json:"document_title,omitempty"`
	DocumentSource string            `json:"document_source,omitempty"`
	Text           string            `json:"text"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Score          float64           `json:"score"`
	Reranked       bool              `json:"reranked"`
}

type searchResultResponse struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	DocumentTitle  string  `json:"document_title,omitempty"`
	DocumentSource string  `json:"document_source,omitempty"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
	Method         string  `json:"method"`
	Reranked       bool    `json:"reranked"`
}

type searchResponse struct {
	Results []searchResultResponse `json:"results"`
	Total   int                    `json:"total"`
}

type answerResponse struct {
	Answer    string             `json:"answer"`
	Citations []citationResponse `json:"citations"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (domain.QueryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return domain.QueryRequest{}, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return domain.QueryRequest{}, false
	}

	history := make([]domain.ConversationTurn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, domain.ConversationTurn{
			Role:    domain.Role(turn.Role),
			Content: turn.Content,
		})
	}

	return domain.QueryRequest{
		Query:   req.Query,
		TopK:    req.TopK,
		History: history,
	}, true
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	results, err := s.pipeline.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultResponse, 0, len(results))
	for _, res := range results {
		items = append(items, searchResultResponse{
			ChunkID:        res.Chunk.ID,
			DocumentID:     res.Chunk.DocumentID,
			DocumentTitle:  res.Chunk.DocumentTitle,
			DocumentSource: res.Chunk.DocumentSource,
			Text:           res.Chunk.Text,
			Score:          res.Score,
			Method:         string(res.Method),
			Reranked:       res.Reranked,
		})
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: items, Total: len(items)})
}

// Answer handles POST /answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := s.pipeline.Answer(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Answer:    answer.Text,
		Citations: citationsToResponse(answer.Citations),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	}
	if s.info.Version != "" {
		body["version"] = s.info.Version
	}
	if s.info.EmbeddingModel != "" || s.info.GenerationModel != "" {
		body["models"] = map[string]string{
			"embedding":  s.info.EmbeddingModel,
			"generation": s.info.GenerationModel,
		}
	}

	writeJSON(w, httpStatus, body)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func citationsToResponse(citations []domain.Citation) []citationResponse {
	out := make([]citationResponse, 0, len(citations))
	for _, c := range citations {
		out = append(out, citationResponse{
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmbeddingUnavailable,
		domain.ErrEmbeddingDimMismatch,
		domain.ErrRetrieval,
		domain.ErrGeneration,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
