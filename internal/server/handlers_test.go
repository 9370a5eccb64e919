package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/benkyo/internal/config"
	"github.com/hyperjump/benkyo/internal/ingest"
	"github.com/hyperjump/benkyo/internal/keyword"
	"github.com/hyperjump/benkyo/internal/models"
	"go.uber.org/zap"
)

type fakeIngestor struct {
	gotPaths []string
	outcome  ingest.Outcome
}

func (f *fakeIngestor) Ingest(_ context.Context, paths []string, progress ingest.ProgressFunc) ingest.Outcome {
	f.gotPaths = paths
	if progress != nil {
		progress("Analyzing: x...", 0.1)
	}
	return f.outcome
}

type fakeAnswerer struct {
	gotQuestion string
	gotHistory  []models.Turn
	answer      string
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, history []models.Turn) string {
	f.gotQuestion = question
	f.gotHistory = history
	return f.answer
}

type fakeSources struct {
	sources []string
	deleted []string
	err     error
}

func (f *fakeSources) ListSources(context.Context) ([]string, error) {
	return f.sources, f.err
}

func (f *fakeSources) DeleteSource(_ context.Context, source string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.deleted = append(f.deleted, source)
	return "Removed " + source + " successfully.", nil
}

type fakeSearcher struct {
	matches []keyword.Match
}

func (f *fakeSearcher) Search(string, int, bool) ([]keyword.Match, error) {
	return f.matches, nil
}

type fakeCatalog struct {
	chunkCount int64
}

func (f *fakeCatalog) RecordChunks(context.Context, []models.Chunk) error     { return nil }
func (f *fakeCatalog) RecordImage(context.Context, string, string, int) error { return nil }
func (f *fakeCatalog) ListSources(context.Context) ([]string, error)          { return nil, nil }
func (f *fakeCatalog) DeleteSource(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeCatalog) CountChunks(context.Context) (int64, error)             { return f.chunkCount, nil }
func (f *fakeCatalog) Reset(context.Context) error                            { return nil }
func (f *fakeCatalog) Close() error                                           { return nil }

type testServer struct {
	*Server
	ingestor *fakeIngestor
	answerer *fakeAnswerer
	sources  *fakeSources
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		ingestor: &fakeIngestor{outcome: ingest.Outcome{OK: true, Message: "done"}},
		answerer: &fakeAnswerer{answer: "the answer"},
		sources:  &fakeSources{sources: []string{"a.pdf", "b.txt"}},
	}
	ts.Server = NewServer(ts.ingestor, ts.answerer, ts.sources, &fakeSearcher{},
		&fakeCatalog{chunkCount: 42}, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	return ts
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHandleIngest(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestor.outcome = ingest.Outcome{OK: true, Message: "Success! Added 1 files (3 chunks) and saved diagrams.", FilesProcessed: 1, ChunkCount: 3}

	rec := do(t, ts.Server, http.MethodPost, "/api/v1/ingest", `{"paths":["/notes/a.pdf"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["ok"] != true || out["chunk_count"] != float64(3) {
		t.Errorf("unexpected body %v", out)
	}
	if len(ts.ingestor.gotPaths) != 1 || ts.ingestor.gotPaths[0] != "/notes/a.pdf" {
		t.Errorf("paths not forwarded: %v", ts.ingestor.gotPaths)
	}
}

func TestHandleIngestEmptyOutcome(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestor.outcome = ingest.Outcome{Message: "No text could be extracted. Check file content."}

	rec := do(t, ts.Server, http.MethodPost, "/api/v1/ingest", `{"paths":["/notes/blank.png"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	out := decode(t, rec)
	if out["message"] != "No text could be extracted. Check file content." {
		t.Errorf("unexpected body %v", out)
	}
}

func TestHandleIngestValidation(t *testing.T) {
	ts := newTestServer(t)
	if rec := do(t, ts.Server, http.MethodPost, "/api/v1/ingest", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty paths: status = %d, want 400", rec.Code)
	}
	if rec := do(t, ts.Server, http.MethodPost, "/api/v1/ingest", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", rec.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	ts := newTestServer(t)
	body := `{"question":"what is backprop?","history":[{"role":"user","text":"hi"},{"role":"model","text":"hello"}]}`
	rec := do(t, ts.Server, http.MethodPost, "/api/v1/ask", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["answer"] != "the answer" {
		t.Errorf("unexpected body %v", out)
	}
	if ts.answerer.gotQuestion != "what is backprop?" {
		t.Errorf("question not forwarded: %q", ts.answerer.gotQuestion)
	}
	if len(ts.answerer.gotHistory) != 2 || ts.answerer.gotHistory[1].Role != models.RoleModel {
		t.Errorf("history not forwarded: %+v", ts.answerer.gotHistory)
	}
}

func TestHandleAskRequiresQuestion(t *testing.T) {
	ts := newTestServer(t)
	if rec := do(t, ts.Server, http.MethodPost, "/api/v1/ask", `{"question":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListSources(t *testing.T) {
	ts := newTestServer(t)
	rec := do(t, ts.Server, http.MethodGet, "/api/v1/sources", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode(t, rec)
	sources, ok := out["sources"].([]interface{})
	if !ok || len(sources) != 2 || sources[0] != "a.pdf" {
		t.Errorf("unexpected body %v", out)
	}
}

func TestHandleDeleteSource(t *testing.T) {
	ts := newTestServer(t)
	rec := do(t, ts.Server, http.MethodDelete, "/api/v1/sources/a.pdf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["message"] != "Removed a.pdf successfully." {
		t.Errorf("unexpected body %v", out)
	}
	if len(ts.sources.deleted) != 1 || ts.sources.deleted[0] != "a.pdf" {
		t.Errorf("delete not forwarded: %v", ts.sources.deleted)
	}
}

func TestHandleDeleteSourceError(t *testing.T) {
	ts := newTestServer(t)
	ts.sources.err = errors.New("store broken")
	rec := do(t, ts.Server, http.MethodDelete, "/api/v1/sources/a.pdf", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.Server.searcher = &fakeSearcher{matches: []keyword.Match{
		{ID: "c1", Snippet: "gradient descent", Source: "ml.pdf", Page: 7, Score: 1.5},
	}}
	rec := do(t, ts.Server, http.MethodPost, "/api/v1/search", `{"query":"gradient"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	matches, ok := out["matches"].([]interface{})
	if !ok || len(matches) != 1 {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestHandleSearchDisabled(t *testing.T) {
	ts := newTestServer(t)
	ts.Server.searcher = nil
	rec := do(t, ts.Server, http.MethodPost, "/api/v1/search", `{"query":"x"}`)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	rec := do(t, ts.Server, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode(t, rec)
	if out["chunks"] != float64(42) || out["sources"] != float64(2) {
		t.Errorf("unexpected body %v", out)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := do(t, ts.Server, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
