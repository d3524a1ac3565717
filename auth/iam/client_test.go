package iam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceskypane/abwars/auth"
)

func TestPasswordGrantReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != TokenPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content-type: %s", got)
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "sec" {
			t.Errorf("unexpected basic auth: %s %s %v", user, pass, ok)
		}

		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "player@example.com" {
			t.Errorf("unexpected form: %v", r.Form)
		}

		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","token_type":"Bearer","expires_in":3600,"refresh_expires_in":86400,"user_id":"u1","namespace":"abwars","display_name":"Ada"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, ClientID: "cid", ClientSecret: "sec", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	now := time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	tokens, err := client.TokenByPassword(context.Background(), PasswordGrant{Username: "player@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("token by password: %v", err)
	}

	if tokens.AccessToken != "a1" || tokens.RefreshToken != "r1" || tokens.UserID != "u1" || tokens.Namespace != "abwars" {
		t.Fatalf("unexpected token set: %#v", tokens)
	}

	if !tokens.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %s", tokens.ExpiresAt)
	}
}

func TestRefresherUsesRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh1" {
			t.Errorf("unexpected form: %v", r.Form)
		}

		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","expires_in":3600}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, ClientID: "cid", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tokens, err := Refresher{Client: client}.Refresh(context.Background(), auth.TokenSet{RefreshToken: "refresh1"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if tokens.AccessToken != "a2" || tokens.RefreshToken != "r2" {
		t.Fatalf("unexpected token set: %#v", tokens)
	}
}

func TestInvalidGrantReturnsFatalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token expired"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, ClientID: "cid", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.TokenByRefresh(context.Background(), "bad")

	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected OAuthError, got %T", err)
	}

	if !auth.IsFatal(err) || !IsInvalidGrant(err) {
		t.Fatalf("expected fatal invalid_grant")
	}
}

func TestTransient500RetriesBounded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&calls, 1)
		if current < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"errorCode":20000,"errorMessage":"internal server error"}`))
			return
		}

		_, _ = w.Write([]byte(`{"access_token":"a3","refresh_token":"r3","expires_in":3600}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:    srv.URL,
		ClientID:   "cid",
		HTTPClient: srv.Client(),
		MaxRetries: 3,
		MinBackoff: time.Millisecond,
		MaxBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.sleep = func(time.Duration) {}

	tokens, err := client.TokenByRefresh(context.Background(), "refresh")
	if err != nil {
		t.Fatalf("token by refresh: %v", err)
	}

	if tokens.AccessToken != "a3" {
		t.Fatalf("unexpected access token: %s", tokens.AccessToken)
	}

	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", atomic.LoadInt32(&calls))
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{ClientID: "cid"}); err == nil {
		t.Fatalf("expected config error")
	}
}
