package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainconfig "mindboard/domain/config"
	"mindboard/infrastructure/config"
	"mindboard/infrastructure/di"
	"mindboard/pkg/common"
	"mindboard/pkg/ratelimit"
)

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Meta    *common.MetaInfo `json:"meta"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	session string
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	cfg := &config.Config{
		ServerAddress:      ":0",
		Environment:        "test",
		StoreBackend:       config.StoreMemory,
		AWSRegion:          "us-east-1",
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Second,
		LogLevel:           "error",
		Engine:             domainconfig.DefaultDomainConfig(),
	}
	c, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	router := NewRouter(c.CommandBus, c.QueryBus, c.Store, c.Clock, c.Metrics, opts, zap.NewNop())
	return &testServer{t: t, handler: router.Setup(), session: "session-1"}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if s.session != "" {
		req.Header.Set(common.SessionHeader, s.session)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) *common.MetaInfo {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
	return env.Meta
}

type boardView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Dirty   bool   `json:"dirty"`
	CanUndo bool   `json:"canUndo"`
	Nodes   []struct {
		ID   string `json:"id"`
		Data struct {
			Label string `json:"label"`
		} `json:"data"`
	} `json:"nodes"`
	Edges []struct {
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"edges"`
}

func TestHealthAndReadiness(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, Options{})
		w := s.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "v1", w.Header().Get("X-API-Version"))
	})

	t.Run("ready", func(t *testing.T) {
		s := newTestServer(t, Options{Ready: func(context.Context) error { return nil }})
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", "").Code)
	})

	t.Run("store down", func(t *testing.T) {
		s := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("table missing") }})
		assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/ready", "").Code)
	})
}

func TestSessionHeaderRequired(t *testing.T) {
	s := newTestServer(t, Options{})
	s.session = ""

	w := s.do(http.MethodGet, "/api/v1/session/board", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), common.SessionHeader)
}

func TestBoardLifecycle(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodPost, "/api/v1/session/board", `{"boardId":"roadmap"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var opened boardView
	decodeData(t, w, &opened)
	assert.Equal(t, "roadmap", opened.ID)
	require.Len(t, opened.Nodes, 1)
	root := opened.Nodes[0].ID

	w = s.do(http.MethodPost, "/api/v1/session/board/nodes", `{"label":"Milestones","text":"<p>Q3</p>"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var added struct {
		Node struct {
			ID string `json:"id"`
		} `json:"node"`
		Board boardView `json:"board"`
	}
	decodeData(t, w, &added)
	assert.Len(t, added.Board.Nodes, 2)
	assert.True(t, added.Board.CanUndo)

	w = s.do(http.MethodPost, "/api/v1/session/board/edges", `{"source":"`+root+`","target":"`+added.Node.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/api/v1/session/board/name", `{"name":"Roadmap 2026"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/session/board/layout", `{"direction":"LR"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/session/board", "")
	require.Equal(t, http.StatusOK, w.Code)
	var current boardView
	decodeData(t, w, &current)
	assert.Equal(t, "Roadmap 2026", current.Name)
	assert.Len(t, current.Edges, 1)
	assert.True(t, current.Dirty)

	w = s.do(http.MethodPost, "/api/v1/session/board/save", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved boardView
	decodeData(t, w, &saved)
	assert.False(t, saved.Dirty)

	w = s.do(http.MethodGet, "/api/v1/boards/roadmap", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodDelete, "/api/v1/session/board", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/session/board", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUndoRedo(t *testing.T) {
	s := newTestServer(t, Options{})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/session/board", `{}`).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/session/board/nodes", `{"label":"Idea"}`).Code)

	var undone struct {
		Applied bool      `json:"applied"`
		Board   boardView `json:"board"`
	}
	w := s.do(http.MethodPost, "/api/v1/session/board/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &undone)
	assert.True(t, undone.Applied)
	assert.Len(t, undone.Board.Nodes, 1)

	w = s.do(http.MethodPost, "/api/v1/session/board/redo", "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &undone)
	assert.Len(t, undone.Board.Nodes, 2)
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t, Options{})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/session/board", `{}`).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown field", http.MethodPost, "/api/v1/session/board/nodes", `{"colour":"red"}`, http.StatusBadRequest},
		{"bad direction", http.MethodPost, "/api/v1/session/board/layout", `{"direction":"diagonal"}`, http.StatusBadRequest},
		{"empty name", http.MethodPut, "/api/v1/session/board/name", `{"name":""}`, http.StatusBadRequest},
		{"missing node", http.MethodDelete, "/api/v1/session/board/nodes/nope", "", http.StatusNotFound},
		{"unknown export format", http.MethodGet, "/api/v1/session/board/export?format=pdf", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error":true`)
		})
	}
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t, Options{})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/session/board", `{"boardId":"plan"}`).Code)

	w := s.do(http.MethodGet, "/api/v1/session/board/export?format=markdown", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "plan.md")
	assert.Contains(t, w.Body.String(), "- **Main Idea**")

	w = s.do(http.MethodGet, "/api/v1/session/board/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	exported := w.Body.String()
	assert.Contains(t, exported, `"id": "plan"`)

	other := newTestServer(t, Options{})
	w = other.do(http.MethodPost, "/api/v1/session/board/import?force=true", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var imported boardView
	decodeData(t, w, &imported)
	assert.Equal(t, "plan", imported.ID)
	assert.Len(t, imported.Nodes, 1)

	w = other.do(http.MethodPost, "/api/v1/session/board/import?force=true", "nodes: [", "Content-Type", "application/yaml")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = other.do(http.MethodPost, "/api/v1/session/board/import?force=maybe", exported)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreEndpoints(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, id := range []string{"a", "b", "c"} {
		w := s.do(http.MethodPut, "/api/v1/boards/"+id, `{"name":"Board `+id+`","nodes":[],"edges":[]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := s.do(http.MethodGet, "/api/v1/boards?page=1&page_size=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Boards     []struct{ ID string } `json:"boards"`
		TotalCount int                   `json:"totalCount"`
		HasMore    bool                  `json:"hasMore"`
	}
	meta := decodeData(t, w, &page)
	assert.Len(t, page.Boards, 2)
	assert.Equal(t, 3, page.TotalCount)
	assert.True(t, page.HasMore)
	require.NotNil(t, meta.Pagination)
	assert.Equal(t, 2, meta.Pagination.TotalPages)

	w = s.do(http.MethodGet, "/api/v1/boards/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/v1/boards/bad", `{"name":"x","nodes":[],"edges":[{"id":"e1","source":"n1","target":"n2"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Options{EnableMetrics: true})
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)

	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mindboard_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Options{EnableCORS: true, CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/session/board", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", common.SessionHeader)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSuggestionRateLimit(t *testing.T) {
	s := newTestServer(t, Options{SuggestLimiter: ratelimit.NewSlidingWindowLimiter(1, time.Minute, nil)})

	first := s.do(http.MethodPost, "/api/v1/session/board/suggestions", `{}`)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	w := s.do(http.MethodPost, "/api/v1/session/board/suggestions", `{}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["type"])

	s.session = "session-2"
	other := s.do(http.MethodPost, "/api/v1/session/board/suggestions", `{}`)
	assert.NotEqual(t, http.StatusTooManyRequests, other.Code, "budgets are per session")

	s.session = "session-1"
	assert.NotEqual(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/api/v1/session/board/context", "").Code)
}
