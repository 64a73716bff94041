package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/answerd/internal/domain"
	healthuc "github.com/kailas-cloud/answerd/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/answerd/internal/usecase/pipeline"
)

type mockPipeline struct {
	searchResults []pipelineuc.SearchResult
	searchErr     error
	answer        domain.Answer
	answerErr     error
	stream        domain.Stream
	streamErr     error
	lastReq       domain.QueryRequest
}

func (m *mockPipeline) Search(_ context.Context, req domain.QueryRequest) ([]pipelineuc.SearchResult, error) {
	m.lastReq = req
	return m.searchResults, m.searchErr
}

func (m *mockPipeline) Answer(_ context.Context, req domain.QueryRequest) (domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.answerErr
}

func (m *mockPipeline) AnswerStream(_ context.Context, req domain.QueryRequest) (domain.Stream, error) {
	m.lastReq = req
	return m.stream, m.streamErr
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report {
	return m.report
}

// sliceStream replays a fixed event sequence.
type sliceStream struct {
	events []domain.Event
	pos    int
	closed bool
}

func (s *sliceStream) Recv() (domain.Event, error) {
	if s.pos >= len(s.events) {
		return domain.Event{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func newTestRouter(p Pipeline, h Health) http.Handler {
	s := NewServer(p, h, zap.NewNop())
	r := chirouter.NewRouter()
	s.Routes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSearch_Success(t *testing.T) {
	p := &mockPipeline{searchResults: []pipelineuc.SearchResult{
		{
			Chunk: domain.Chunk{
				ID:            "c1",
				DocumentID:    "d1",
				DocumentTitle: "Refunds",
				Text:          "30 day refund window",
			},
			Score:    0.92,
			Method:   domain.MethodHybrid,
			Reranked: true,
		},
	}}
	router := newTestRouter(p, &mockHealth{})

	rr := postJSON(t, router, "/search", `{"query":"refund policy","top_k":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected one result, got %+v", resp)
	}
	if resp.Results[0].ChunkID != "c1" || resp.Results[0].Method != "hybrid" || !resp.Results[0].Reranked {
		t.Errorf("unexpected result: %+v", resp.Results[0])
	}
	if p.lastReq.Query != "refund policy" || p.lastReq.TopK != 3 {
		t.Errorf("request not forwarded: %+v", p.lastReq)
	}
}

func TestSearch_EmptyQuery_400(t *testing.T) {
	router := newTestRouter(&mockPipeline{}, &mockHealth{})

	rr := postJSON(t, router, "/search", `{"query":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "validation_failed" {
		t.Errorf("error code: got %s, want validation_failed", errResp.Code)
	}
}

func TestSearch_InvalidBody_400(t *testing.T) {
	router := newTestRouter(&mockPipeline{}, &mockHealth{})

	rr := postJSON(t, router, "/search", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"embedding unavailable", domain.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_unavailable"},
		{"dim mismatch", domain.ErrEmbeddingDimMismatch, http.StatusBadGateway, "embedding_dim_mismatch"},
		{"retrieval", domain.ErrRetrieval, http.StatusServiceUnavailable, "retrieval_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&mockPipeline{searchErr: tc.err}, &mockHealth{})

			rr := postJSON(t, router, "/search", `{"query":"q"}`)
			if rr.Code != tc.wantStatus {
				t.Fatalf("got %d, want %d", rr.Code, tc.wantStatus)
			}

			var errResp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != tc.wantCode {
				t.Errorf("error code: got %s, want %s", errResp.Code, tc.wantCode)
			}
		})
	}
}

func TestAnswer_Success(t *testing.T) {
	p := &mockPipeline{answer: domain.Answer{
		Text: "Refunds are accepted within 30 days.",
		Citations: []domain.Citation{
			{Number: 1, ChunkID: "c1", DocumentID: "d1", Text: "30 day refund window", Score: 0.92, Reranked: true},
		},
	}}
	router := newTestRouter(p, &mockHealth{})

	rr := postJSON(t, router, "/answer", `{"query":"refund policy","history":[{"role":"user","content":"hi"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp answerResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Refunds are accepted within 30 days." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Number != 1 {
		t.Errorf("unexpected citations: %+v", resp.Citations)
	}
	if len(p.lastReq.History) != 1 || p.lastReq.History[0].Role != domain.RoleUser {
		t.Errorf("history not forwarded: %+v", p.lastReq.History)
	}
}

func TestAnswer_GenerationError_502(t *testing.T) {
	p := &mockPipeline{answerErr: domain.ErrGeneration}
	router := newTestRouter(p, &mockHealth{})

	rr := postJSON(t, router, "/answer", `{"query":"q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502", rr.Code)
	}
}

func TestAnswerStream_EventFrames(t *testing.T) {
	stream := &sliceStream{events: []domain.Event{
		{Type: domain.EventCitations, Citations: []domain.Citation{{Number: 1, ChunkID: "c1"}}},
		{Type: domain.EventToken, Token: "Refunds "},
		{Type: domain.EventToken, Token: "work."},
		{Type: domain.EventDone, Answer: "Refunds work."},
	}}
	p := &mockPipeline{stream: stream}
	router := newTestRouter(p, &mockHealth{})

	rr := postJSON(t, router, "/answer/stream", `{"query":"refund policy"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got %s, want text/event-stream", ct)
	}

	body := rr.Body.String()
	frames := []string{
		"event: citations\ndata: {\"citations\":[{",
		"event: token\ndata: {\"token\":\"Refunds \"}",
		"event: token\ndata: {\"token\":\"work.\"}",
		"event: done\ndata: {\"answer\":\"Refunds work.\"}",
	}
	last := -1
	for _, frame := range frames {
		idx := strings.Index(body, frame)
		if idx < 0 {
			t.Fatalf("frame %q missing in body:\n%s", frame, body)
		}
		if idx < last {
			t.Fatalf("frame %q out of order in body:\n%s", frame, body)
		}
		last = idx
	}
	if !stream.closed {
		t.Error("stream was not closed")
	}
}

func TestAnswerStream_ErrorEvent(t *testing.T) {
	stream := &sliceStream{events: []domain.Event{
		{Type: domain.EventCitations},
		{Type: domain.EventError, Err: domain.ErrGeneration},
	}}
	router := newTestRouter(&mockPipeline{stream: stream}, &mockHealth{})

	rr := postJSON(t, router, "/answer/stream", `{"query":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "event: error\n") {
		t.Fatalf("expected error frame, got:\n%s", body)
	}
	if strings.Count(body, "event: error\n")+strings.Count(body, "event: done\n") != 1 {
		t.Fatalf("expected exactly one terminal frame, got:\n%s", body)
	}
}

func TestAnswerStream_FatalErrorBeforeStream(t *testing.T) {
	router := newTestRouter(&mockPipeline{streamErr: domain.ErrEmbeddingUnavailable}, &mockHealth{})

	rr := postJSON(t, router, "/answer/stream", `{"query":"q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type: got %s, want application/json", ct)
	}
}

func TestHealthCheck_Healthy_200(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}}
	router := newTestRouter(&mockPipeline{}, h)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
}

func TestHealthCheck_Degraded_200(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			"database":  healthuc.CheckOK,
			"embedding": healthuc.CheckError,
		},
	}}
	router := newTestRouter(&mockPipeline{}, h)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("degraded should still return 200, got %d", rr.Code)
	}
}

func TestHealthCheck_ReportsModels(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}}
	s := NewServer(&mockPipeline{}, h, zap.NewNop()).WithInfo(ServerInfo{
		Version:         "1.2.3",
		EmbeddingModel:  "text-embedding-3-small",
		GenerationModel: "gpt-4o-mini",
	})

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	s.HealthCheck(rr, req)

	var body struct {
		Version string            `json:"version"`
		Models  map[string]string `json:"models"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", body.Version)
	}
	if body.Models["embedding"] != "text-embedding-3-small" || body.Models["generation"] != "gpt-4o-mini" {
		t.Errorf("unexpected models: %v", body.Models)
	}
}

func TestHealthCheck_Unhealthy_503(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}}
	router := newTestRouter(&mockPipeline{}, h)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
}
