package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralhq/astral-assist/internal/log"
	"github.com/astralhq/astral-assist/internal/rag"
	"github.com/astralhq/astral-assist/internal/router"
)

type stubHandler struct {
	envelope router.Envelope
	err      error
	lastReq  router.Request
}

func (s *stubHandler) Handle(ctx context.Context, req router.Request) (router.Envelope, error) {
	s.lastReq = req
	return s.envelope, s.err
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

type stubResetter struct {
	namespaces []string
	err        error
}

func (s *stubResetter) DeleteNamespace(ctx context.Context, ns string) error {
	s.namespaces = append(s.namespaces, ns)
	return s.err
}

func newTestServer(h QueryHandler, p Pinger, r Resetter) *Server {
	return New(Config{
		Addr:      ":0",
		Namespace: "main",
		RateRPS:   1000,
		RateBurst: 1000,
	}, h, p, r, nil, log.NewNop())
}

func TestHandleQuery_OK(t *testing.T) {
	stub := &stubHandler{envelope: router.Envelope{
		Decision: router.Decision{Target: router.TargetKnowledge, Reasoning: "no actionable command detected"},
		Result: router.Result{
			Response:      "Refunds take 30 days.",
			Contexts:      []rag.ContextRef{{ID: "a", Score: 0.9}},
			AgentsUsed:    []string{"rag"},
			AgentStrategy: "rag_only",
		},
	}}
	srv := newTestServer(stub, nil, nil)

	body := `{"query":"What is our refund policy?","session_id":"s1","history":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got router.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, router.TargetKnowledge, got.Decision.Target)
	assert.Equal(t, "Refunds take 30 days.", got.Result.Response)
	assert.Len(t, got.Result.Contexts, 1)

	assert.Equal(t, "s1", stub.lastReq.SessionID)
	require.Len(t, stub.lastReq.History, 1)
	assert.Equal(t, "hi", stub.lastReq.History[0].Content)
}

func TestHandleQuery_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"query":`},
		{"missing query", `{"session_id":"s1"}`},
	}
	srv := newTestServer(&stubHandler{}, nil, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleQuery_ServiceUnavailable(t *testing.T) {
	stub := &stubHandler{err: router.ErrServiceUnavailable}
	srv := newTestServer(stub, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"anything"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleQuery_InternalError(t *testing.T) {
	stub := &stubHandler{err: errors.New("boom")}
	srv := newTestServer(stub, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"anything"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("internal error detail leaked to the client")
	}
}

func TestHealthAndHello(t *testing.T) {
	srv := newTestServer(&stubHandler{}, nil, nil)

	for _, path := range []string{"/health", "/api/hello"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReady(t *testing.T) {
	t.Run("storage up", func(t *testing.T) {
		srv := newTestServer(&stubHandler{}, &stubPinger{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("storage down", func(t *testing.T) {
		srv := newTestServer(&stubHandler{}, &stubPinger{err: errors.New("down")}, nil)
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestReset(t *testing.T) {
	resetter := &stubResetter{}
	srv := newTestServer(&stubHandler{}, nil, resetter)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset?namespace=staging", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(resetter.namespaces) != 1 || resetter.namespaces[0] != "staging" {
		t.Errorf("namespaces = %v, want [staging]", resetter.namespaces)
	}
}

func TestReset_DefaultsToConfiguredNamespace(t *testing.T) {
	resetter := &stubResetter{}
	srv := newTestServer(&stubHandler{}, nil, resetter)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(resetter.namespaces) != 1 || resetter.namespaces[0] != "main" {
		t.Errorf("namespaces = %v, want [main]", resetter.namespaces)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := newTestServer(&stubHandler{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestRateLimit(t *testing.T) {
	srv := New(Config{
		Addr:      ":0",
		Namespace: "main",
		RateRPS:   1,
		RateBurst: 2,
	}, &stubHandler{}, nil, nil, nil, log.NewNop())

	limited := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("burst exceeded but no request was rate limited")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := New(Config{
		Addr:        ":0",
		Namespace:   "main",
		CORSOrigins: []string{"http://localhost:3000"},
		RateRPS:     1000,
		RateBurst:   1000,
	}, &stubHandler{}, nil, nil, nil, log.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
