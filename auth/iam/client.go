package iam

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/auth"
	"github.com/ceskypane/abwars/internal/backoff"
)

var ErrMissingAccessToken = errors.New("auth/iam: missing access token in oauth response")

type Client struct {
	cfg   Config
	sleep func(time.Duration)
	now   func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, oops.Code("IAM_CONFIG").Errorf("auth/iam: base url is required")
	}

	if cfg.ClientID == "" {
		return nil, oops.Code("IAM_CONFIG").Errorf("auth/iam: client id is required")
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 100 * time.Millisecond
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}

	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}

	return &Client{cfg: cfg, sleep: time.Sleep, now: time.Now}, nil
}

func (c *Client) TokenByPassword(ctx context.Context, grant PasswordGrant) (auth.TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "password")
	values.Set("username", grant.Username)
	values.Set("password", grant.Password)

	return c.tokenGrant(ctx, values)
}

func (c *Client) TokenByRefresh(ctx context.Context, refreshToken string) (auth.TokenSet, error) {
	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)

	return c.tokenGrant(ctx, values)
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	UserID           string `json:"user_id"`
	Namespace        string `json:"namespace"`
	DisplayName      string `json:"display_name"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        int    `json:"errorCode"`
	ErrorMessage     string `json:"errorMessage"`
}

func (c *Client) tokenGrant(ctx context.Context, values url.Values) (auth.TokenSet, error) {
	attempt := 0

	for {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.tokenURL(), strings.NewReader(values.Encode()))
		if err != nil {
			return auth.TokenSet{}, err
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID+":"+c.cfg.ClientSecret)))

		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			if attempt >= c.cfg.MaxRetries+1 {
				return auth.TokenSet{}, oops.Code("IAM_TRANSPORT").Wrap(err)
			}

			if !c.sleepContext(ctx, c.retryBackoff(attempt-1)) {
				return auth.TokenSet{}, ctx.Err()
			}

			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return auth.TokenSet{}, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return parseTokenResponse(body, c.now().UTC())
		}

		oauthErr := parseOAuthError(resp.StatusCode, body)
		if oauthErr.Retryable() && attempt < c.cfg.MaxRetries+1 {
			delay := retryAfterDelay(resp.Header.Get("Retry-After"), c.retryBackoff(attempt-1))
			if !c.sleepContext(ctx, delay) {
				return auth.TokenSet{}, ctx.Err()
			}

			continue
		}

		return auth.TokenSet{}, oauthErr
	}
}

func parseTokenResponse(raw []byte, now time.Time) (auth.TokenSet, error) {
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return auth.TokenSet{}, oops.Code("IAM_DECODE").Wrap(err)
	}

	if tr.AccessToken == "" {
		return auth.TokenSet{}, ErrMissingAccessToken
	}

	tokens := auth.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		UserID:       tr.UserID,
		Namespace:    tr.Namespace,
		DisplayName:  tr.DisplayName,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}

	if tr.RefreshExpiresIn > 0 {
		tokens.RefreshExpiresAt = now.Add(time.Duration(tr.RefreshExpiresIn) * time.Second)
	}

	return tokens, nil
}

func parseOAuthError(status int, raw []byte) *OAuthError {
	var payload errorResponse
	_ = json.Unmarshal(raw, &payload)

	err := &OAuthError{
		StatusCode:       status,
		OAuthError:       payload.Error,
		ErrorDescription: payload.ErrorDescription,
		ErrorCode:        payload.ErrorCode,
		Message:          payload.ErrorMessage,
	}

	if err.Message == "" && err.OAuthError == "" && len(raw) > 0 {
		err.Message = string(raw)
	}

	return err
}

func retryAfterDelay(header string, fallback time.Duration) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return fallback
	}

	if sec, err := strconv.Atoi(header); err == nil && sec >= 0 {
		return time.Duration(sec) * time.Second
	}

	return fallback
}

func (c *Client) retryBackoff(attempt int) time.Duration {
	return backoff.Exponential(attempt, c.cfg.MinBackoff, c.cfg.MaxBackoff)
}

func (c *Client) sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	done := make(chan struct{})
	go func() {
		c.sleep(d)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}
