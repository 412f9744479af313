package assistant

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/carelink/internal/agent"
)

func newTestServer(t *testing.T, sessions ...*scriptedChat) *httptest.Server {
	t.Helper()
	env := newEnv(t, sessions...)
	r := chi.NewRouter()
	NewHandler(env.service, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postTurn(t *testing.T, srv *httptest.Server, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/turn", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleTurnHTTP(t *testing.T) {
	srv := newTestServer(t, &scriptedChat{turns: []agent.ModelTurn{
		{Text: "Chào anh/chị, em có thể giúp gì ạ?"},
	}})

	resp := postTurn(t, srv, `{"sessionId":"sess-1","prompt":"xin chào"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHandleTurnSessionIDFromHeader(t *testing.T) {
	srv := newTestServer(t, &scriptedChat{turns: []agent.ModelTurn{
		{Text: "Chào anh/chị."},
	}})

	resp := postTurn(t, srv, `{"prompt":"xin chào"}`, map[string]string{"X-Session-ID": "sess-h"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleTurnRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]string{
		"invalid json":    `{`,
		"missing session": `{"prompt":"xin chào"}`,
		"missing prompt":  `{"sessionId":"sess-1"}`,
	} {
		resp := postTurn(t, srv, body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}
