package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceskypane/abwars/errutil"
	transporthttp "github.com/ceskypane/abwars/transport/http"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *HTTPBackend {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := transporthttp.NewClient(srv.Client(), nil, transporthttp.Config{MaxRetries: 0, MinBackoff: time.Millisecond})
	backend, err := NewHTTPBackend(client, HTTPConfig{BaseURL: srv.URL, Namespace: "abwars"})
	require.NoError(t, err)

	return backend
}

func TestHTTPBackendCreateParty(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session/v1/public/namespaces/abwars/party", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req createPartyRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "unreal-party", req.ConfigurationName)
		assert.Equal(t, []string{"u1"}, req.Members)

		_, _ = w.Write([]byte(`{"id":"p1","leaderID":"u1","version":1,"updatedAt":"2024-05-01T10:00:00Z","members":[{"id":"u1","status":"joined"},{"id":"u9","status":"INVITED"}]}`))
	})

	got, err := backend.CreateParty(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, PartySessionName, got.Name)
	assert.Equal(t, TypeParty, got.Type)
	assert.Equal(t, "u1", got.LeaderID)
	assert.Equal(t, []string{"u1"}, got.ActiveMembers())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.UpdatedAt)
}

func TestHTTPBackendRejectedErrorKeepsAPIError(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/v1/public/namespaces/abwars/parties/p404/users/me/join", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":20041,"errorMessage":"session not found"}`))
	})

	_, err := backend.JoinParty(context.Background(), "u1", "p404")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrBackendRejected)
	assert.Equal(t, "SESSION_BACKEND_REJECTED", errutil.Code(err))

	var apiErr *transporthttp.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 20041, apiErr.Code)
	assert.Equal(t, JoinSessionDoesNotExist, JoinResultFromError(err))
}

func TestHTTPBackendRoutes(t *testing.T) {
	type call struct {
		method string
		path   string
		body   string
	}

	calls := make(chan call, 8)
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls <- call{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, backend.LeaveSession(ctx, "u1", "p1"))
	require.NoError(t, backend.SendInvite(ctx, "p1", "u2"))
	require.NoError(t, backend.RejectInvite(ctx, "p1"))
	require.NoError(t, backend.KickMember(ctx, "p1", "u2"))
	require.NoError(t, backend.PromoteLeader(ctx, "p1", "u3"))

	prefix := "/session/v1/public/namespaces/abwars/parties/p1/"
	want := []call{
		{method: http.MethodDelete, path: prefix + "users/me/leave"},
		{method: http.MethodPost, path: prefix + "invite", body: `{"userID":"u2"}`},
		{method: http.MethodPost, path: prefix + "users/me/reject"},
		{method: http.MethodDelete, path: prefix + "users/u2/kick"},
		{method: http.MethodPost, path: prefix + "leader", body: `{"leaderID":"u3"}`},
	}

	for _, expected := range want {
		got := <-calls
		assert.Equal(t, expected, got)
	}
}

func TestHTTPBackendRestoreActiveSessions(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/v1/public/namespaces/abwars/users/me/parties", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","leaderID":"u2","members":[{"id":"u1","status":"CONNECTED"},{"id":"u2","status":"JOINED"}]},{"id":"p2","leaderID":"u1"}]}`))
	})

	sessions, err := backend.RestoreActiveSessions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "p1", sessions[0].ID)
	assert.ElementsMatch(t, []string{"u1", "u2"}, sessions[0].ActiveMembers())
	assert.Equal(t, "p2", sessions[1].ID)
}

func TestNewHTTPBackendRequiresConfig(t *testing.T) {
	_, err := NewHTTPBackend(nil, HTTPConfig{BaseURL: "http://x", Namespace: "ns"})
	require.Error(t, err)
	assert.Equal(t, "SESSION_CONFIG", errutil.Code(err))

	_, err = NewHTTPBackend(transporthttp.NewClient(nil, nil, transporthttp.Config{}), HTTPConfig{BaseURL: "http://x"})
	require.Error(t, err)
}

func TestJoinResultFromError(t *testing.T) {
	assert.Equal(t, JoinSuccess, JoinResultFromError(nil))
	assert.Equal(t, JoinUnknownError, JoinResultFromError(errors.New("boom")))
	assert.Equal(t, JoinSessionIsFull, JoinResultFromError(&transporthttp.APIError{StatusCode: 400, Message: "Party is full"}))
	assert.Equal(t, JoinAlreadyInSession, JoinResultFromError(&transporthttp.APIError{StatusCode: 409, Message: "already joined"}))
	assert.Equal(t, "session_is_full", JoinSessionIsFull.String())
}
