package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alertgraph/internal/pipeline"
	"alertgraph/pkg/models"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	current *models.Snapshot
	next    *models.Snapshot
	err     error
}

func (f *fakeAnalyzer) Current() *models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeAnalyzer) Run(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.current = f.next
	return f.next, nil
}

func okSnapshot(id string) *models.Snapshot {
	attacker := "10.0.0.1"
	return &models.Snapshot{
		ID:         id,
		Status:     models.StatusOK,
		Source:     "logs/fast.log",
		AnalyzedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Result: &models.AnalysisResult{
			Graph:                       models.NetworkGraph{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}},
			MostAggressiveAttacker:      &attacker,
			MostAggressiveAttackerCount: 3,
		},
	}
}

func do(t *testing.T, h *Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, body
}

func TestGetAnalysisNotAnalyzed(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{Status: models.StatusNotAnalyzed}}, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/analysis")
	if rec.Code != http.StatusOK || body["status"] != "not analyzed" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
}

func TestGetAnalysisSourceMissing(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{Status: models.StatusSourceMissing, Source: "logs/fast.log"}}, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/analysis")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["error"] != "Log file not found" || body["path"] != "logs/fast.log" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestGetAnalysisReturnsResult(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: okSnapshot("a")}, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/analysis")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["most_aggressive_attacker"] != "10.0.0.1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["graph"]; !ok {
		t.Fatalf("expected graph in body: %v", body)
	}
}

func TestReload(t *testing.T) {
	fa := &fakeAnalyzer{current: &models.Snapshot{Status: models.StatusNotAnalyzed}, next: okSnapshot("b")}
	h := NewHandler(fa, Options{})
	rec, body := do(t, h, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusOK || body["status"] != "reloaded" || body["id"] != "b" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
	if fa.Current().ID != "b" {
		t.Fatalf("expected reload to publish new snapshot")
	}
}

func TestReloadMissingSource(t *testing.T) {
	fa := &fakeAnalyzer{
		current: &models.Snapshot{Status: models.StatusSourceMissing, Source: "logs/fast.log"},
		err:     fmt.Errorf("%w: logs/fast.log", pipeline.ErrSourceMissing),
	}
	h := NewHandler(fa, Options{})
	rec, body := do(t, h, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusNotFound || body["path"] != "logs/fast.log" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
}

func TestReloadFailure(t *testing.T) {
	fa := &fakeAnalyzer{current: &models.Snapshot{Status: models.StatusNotAnalyzed}, err: errors.New("permission denied")}
	h := NewHandler(fa, Options{})
	rec, body := do(t, h, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusInternalServerError || body["error"] != "permission denied" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
}

func TestReloadRequiresPost(t *testing.T) {
	fa := &fakeAnalyzer{current: &models.Snapshot{Status: models.StatusNotAnalyzed}, next: okSnapshot("never")}
	h := NewHandler(fa, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/reload")
	if rec.Code != http.StatusMethodNotAllowed || body["error"] != "method not allowed" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
	if fa.Current().Status != models.StatusNotAnalyzed {
		t.Fatalf("GET must not trigger a reload")
	}

	rec, _ = do(t, h, http.MethodPost, "/api/analysis")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST /api/analysis, got %d", rec.Code)
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{}}, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/unknown")
	if rec.Code != http.StatusNotFound || body["error"] != "not found" {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
}

func TestStatusOmitsResult(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: okSnapshot("c")}, Options{})
	rec, body := do(t, h, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK || body["id"] != "c" || body["status"] != models.StatusOK {
		t.Fatalf("unexpected response: %d %v", rec.Code, body)
	}
	if _, ok := body["result"]; ok {
		t.Fatalf("status should not include the result body")
	}
	if _, ok := body["analyzed_at"]; !ok {
		t.Fatalf("expected analyzed_at in status")
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	})
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{}}, Options{MetricsPath: "/metrics", Metrics: metrics})

	rec, body := do(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "# metrics") {
		t.Fatalf("unexpected metrics response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{}}, Options{})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/reload", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response: %d %v", rec.Code, rec.Header())
	}
}

func TestWebsocketReceivesPublishedSnapshot(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{}}, Options{})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()
	defer h.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := h.WriteResult(context.Background(), okSnapshot("ws-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got models.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "ws-1" || got.Result == nil {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestBroadcastLoopResendsCurrent(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: okSnapshot("tick")}, Options{BroadcastInterval: 20 * time.Millisecond})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()
	h.StartBroadcast()
	defer h.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"id":"tick"`) {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestCloseWithoutBroadcast(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{current: &models.Snapshot{}}, Options{})
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}
