package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginBindsIdentity(t *testing.T) {
	identities := NewMemoryIdentityMap(0, nil)
	srv := httptest.NewServer(NewHandler(identities, nil).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/login", "application/json",
		strings.NewReader(`{"sessionId":"sess-1","userId":"user-9"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	userID, ok := identities.GetUserID(context.Background(), "sess-1")
	require.True(t, ok)
	assert.Equal(t, "user-9", userID)
}

func TestLoginRejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewMemoryIdentityMap(0, nil), nil).Routes())
	defer srv.Close()

	for name, body := range map[string]string{
		"invalid json":    `{`,
		"missing session": `{"userId":"user-9"}`,
		"missing user":    `{"sessionId":"sess-1"}`,
	} {
		resp, err := http.Post(srv.URL+"/login", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}
