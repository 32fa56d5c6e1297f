package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/scholar/internal/knowledge"
	"github.com/mohammad-safakhou/scholar/internal/research"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/provider/llm"
	"github.com/mohammad-safakhou/scholar/session/inmemory"
	"github.com/mohammad-safakhou/scholar/tools/paper_search"
	"github.com/mohammad-safakhou/scholar/tools/paper_search/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoProvider struct{ fail bool }

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	if p.fail {
		return "", errors.New("model down")
	}
	parts := make([]string, 0, len(history))
	for _, m := range history {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n"), nil
}

type testServer struct {
	e        *echo.Echo
	provider *echoProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := inmemory.NewInMemorySessionStore(inmemory.Options{})
	t.Cleanup(store.Close)
	provider := &echoProvider{}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	orch := research.NewOrchestrator(
		store,
		paper_search.NewClient(zap.NewNop(), metrics, catalog.Search{}),
		knowledge.NewExtractor(provider, nil, metrics),
		provider,
		zap.NewNop(),
		metrics,
		research.Options{CapabilityTimeout: 5 * time.Second},
	)
	e := New(orch, Options{Metrics: metrics, Gatherer: reg, CookieMaxAge: time.Hour})
	return &testServer{e: e, provider: provider}
}

func (s *testServer) do(t *testing.T, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestSessionCookieIsIssuedAndHonoured(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/session-id", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess SessionResponse
	decode(t, rec, &sess)
	require.NotEmpty(t, sess.SessionID)
	assert.Equal(t, sess.SessionID, rec.Header().Get(SessionHeader))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/session-id", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	s.e.ServeHTTP(rec2, req)
	var again SessionResponse
	decode(t, rec2, &again)
	assert.Equal(t, sess.SessionID, again.SessionID)

	rec3 := s.do(t, http.MethodGet, "/api/session-id", "bad id!", "")
	assert.Equal(t, http.StatusBadRequest, rec3.Code)
}

func TestMalformedSessionCookieStartsNewSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/session-id", "/api/topics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../stale"})
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		id := rec.Header().Get(SessionHeader)
		assert.True(t, models.ValidSessionID(id))
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, id, cookies[0].Value)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/clear-context", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bad!id"})
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestResearchFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	const sid = "flow-1"

	rec := s.do(t, http.MethodPost, "/api/search-papers", sid, `{"query":"transformers","max_results":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var found PapersResponse
	decode(t, rec, &found)
	require.Len(t, found.Papers, 3)

	paper := found.Papers[0]
	body, _ := json.Marshal(AnalyzePaperRequest{Title: paper.Title, Authors: paper.Authors, Abstract: paper.Abstract})
	rec = s.do(t, http.MethodPost, "/api/analyze-paper", sid, string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/research-papers", sid, "")
	var all PapersResponse
	decode(t, rec, &all)
	assert.Len(t, all.Papers, 3)

	rec = s.do(t, http.MethodGet, "/api/research-papers?limit=1", sid, "")
	var top PapersResponse
	decode(t, rec, &top)
	assert.Len(t, top.Papers, 1)

	rec = s.do(t, http.MethodGet, "/api/summary", sid, "")
	var summary SummaryResponse
	decode(t, rec, &summary)
	assert.Contains(t, summary.Summary, paper.Title)

	rec = s.do(t, http.MethodGet, "/api/topics", sid, "")
	var topics TopicsResponse
	decode(t, rec, &topics)
	assert.Contains(t, topics.Topics, "transformers")

	rec = s.do(t, http.MethodGet, "/api/research-findings", sid, "")
	var findings FindingsResponse
	decode(t, rec, &findings)
	assert.NotEmpty(t, findings.Findings)

	rec = s.do(t, http.MethodPost, "/api/chat", sid, `{"message":"Explain attention (Vaswani, 2017)"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var chat ChatResponse
	decode(t, rec, &chat)
	assert.NotEmpty(t, chat.Response)

	rec = s.do(t, http.MethodGet, "/api/citations", sid, "")
	var citations CitationsResponse
	decode(t, rec, &citations)
	assert.NotEmpty(t, citations.Citations)

	rec = s.do(t, http.MethodPost, "/api/literature-review", sid, `{"topic":"language"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var review LiteratureReviewResponse
	decode(t, rec, &review)
	assert.NotEmpty(t, review.Review)

	rec = s.do(t, http.MethodGet, "/api/context", sid, "")
	var snap models.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, sid, snap.SessionID)
	assert.Len(t, snap.Papers, 3)

	rec = s.do(t, http.MethodPost, "/api/clear-context", sid, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/context", sid, "")
	snap = models.Snapshot{}
	decode(t, rec, &snap)
	assert.Empty(t, snap.Papers)
	assert.Empty(t, snap.Messages)
	assert.NotNil(t, snap.Topics)
}

func TestValidationErrorsAre400(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		path string
		body string
	}{
		{"/api/chat", `{"message":""}`},
		{"/api/chat", `{not json`},
		{"/api/search-papers", `{"query":"   ","max_results":3}`},
		{"/api/search-papers", `{"query":"ai","max_results":-2}`},
		{"/api/analyze-paper", `{"title":"T"}`},
		{"/api/analyze-paper", `{"title":"T","abstract":"A","url":"not a url"}`},
		{"/api/literature-review", `{"topic":""}`},
	}
	for _, tc := range cases {
		rec := s.do(t, http.MethodPost, tc.path, "v1", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", tc.path, tc.body)
		var body map[string]string
		decode(t, rec, &body)
		assert.NotEmpty(t, body["error"])
	}
	rec := s.do(t, http.MethodGet, "/api/research-papers?limit=x", "v1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/research-papers", "v1", "")
	var papers PapersResponse
	decode(t, rec, &papers)
	assert.Empty(t, papers.Papers)
}

func TestProviderFailureIs503(t *testing.T) {
	s := newTestServer(t)
	s.provider.fail = true

	rec := s.do(t, http.MethodPost, "/api/chat", "p1", `{"message":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/context", "p1", "")
	var snap models.Snapshot
	decode(t, rec, &snap)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hello", snap.Messages[0].Content)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		code int
	}{
		{models.EmptyQueryError(), http.StatusBadRequest},
		{&models.NotFoundError{SessionID: "x"}, http.StatusNotFound},
		{&models.ProviderUnavailableError{Capability: "paper_search", Err: errors.New("x")}, http.StatusServiceUnavailable},
		{&models.InconsistencyError{SessionID: "x", Reason: "index"}, http.StatusInternalServerError},
		{echo.NewHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, msg := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	_ = s.do(t, http.MethodGet, "/api/topics", "m1", "")
	rec = s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scholar_http_requests_total{method="GET",route="/api/topics",status="200"} 1`)
}

func TestChatHandlerWithEchoContext(t *testing.T) {
	s := newTestServer(t)
	h := &ResearchHandler{Research: fakeResearch{reply: "hi there"}}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello","mode":"research"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := s.e.NewContext(req, rec)
	ctx.Set(sessionKey, "c1")

	require.NoError(t, h.chat(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"hi there"}`, rec.Body.String())
}

type fakeResearch struct {
	Research
	reply string
}

func (f fakeResearch) Chat(_ context.Context, id, message, mode string) (string, error) {
	if id != "c1" || message != "hello" || mode != "research" {
		return "", errors.New("unexpected call")
	}
	return f.reply, nil
}
