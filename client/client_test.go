package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ceskypane/abwars/auth"
	"github.com/ceskypane/abwars/errutil"
	"github.com/ceskypane/abwars/events"
)

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abwars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://demo.accelbyte.io
namespace: abwars
lobby_url: wss://demo.accelbyte.io/lobby/
operation_timeout: 3s
ftue_always_on: true
`), 0o600))

	t.Setenv("ABWARS_NAMESPACE", "abwars-dev")
	t.Setenv("ABWARS_LOG_FORMAT", "text")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://demo.accelbyte.io", cfg.BaseURL)
	assert.Equal(t, "abwars-dev", cfg.Namespace)
	assert.Equal(t, "wss://demo.accelbyte.io/lobby/", cfg.LobbyURL)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.OperationTimeout)
	assert.True(t, cfg.FTUEAlwaysOn)
	assert.Equal(t, "unreal-party", cfg.PartyTemplate)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abwars.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_ulr: typo\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Equal(t, "CLIENT_CONFIG_PARSE", errutil.Code(err))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{Namespace: "abwars"}, Deps{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(Config{BaseURL: "http://x", Namespace: "abwars", Username: "p1"}, Deps{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoginWithoutCredentials(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://x", Namespace: "abwars"}, Deps{})
	require.NoError(t, err)

	err = c.Login(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestLoginPasswordGrantStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/iam/v3/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "player@example.com", r.PostForm.Get("username"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user_id":"u1","display_name":"Ayla"}`))
	}))
	defer srv.Close()

	store := auth.NewMemoryTokenStore()
	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		Namespace: "abwars",
		ClientID:  "game-client",
		Username:  "player@example.com",
		Password:  "secret",
	}, Deps{HTTPClient: srv.Client(), TokenStore: store})
	require.NoError(t, err)

	require.NoError(t, c.Login(context.Background()))

	tokens, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", tokens.UserID)
	assert.Equal(t, "Ayla", c.argument(ArgDisplayName))
	assert.Equal(t, "u1", c.argument(ArgUserID))
	assert.Equal(t, "abwars", c.argument(ArgNamespace))
}

func TestRunLeavesRestoredPartyOnLobbyConnect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"), goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/lobby/" {
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}

		record(r)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/users/me/parties"):
			_, _ = w.Write([]byte(`{"data":[{"id":"stale","leaderID":"u1","version":3,"members":[{"id":"u1","status":"JOINED"}]}]}`))
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/parties/stale/users/me/leave"):
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := auth.NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), auth.TokenSet{
		AccessToken: "at",
		UserID:      "u1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		Namespace: "abwars",
		LobbyURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/lobby/",
	}, Deps{HTTPClient: srv.Client(), TokenStore: store, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	left, err := c.Bus().SubscribeMatching(4, events.IsName(events.EventPartyLeft))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case evt := <-left.C:
		require.NoError(t, evt.(events.PartyLeft).Err)
	case <-time.After(5 * time.Second):
		t.Fatalf("stale party was not left")
	}

	assert.True(t, c.LobbyConnected())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, calls, "GET /session/v1/public/namespaces/abwars/users/me/parties")
	assert.Contains(t, calls, "DELETE /session/v1/public/namespaces/abwars/parties/stale/users/me/leave")

	assert.ErrorIs(t, c.Run(context.Background()), ErrAlreadyStarted)
}
