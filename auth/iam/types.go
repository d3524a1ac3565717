// Package iam talks to the AccelByte IAM OAuth endpoint.
package iam

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ceskypane/abwars/auth"
)

const TokenPath = "/iam/v3/oauth/token"

type PasswordGrant struct {
	Username string
	Password string
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (c Config) tokenURL() string {
	return strings.TrimRight(c.BaseURL, "/") + TokenPath
}

type OAuthClient interface {
	TokenByPassword(ctx context.Context, grant PasswordGrant) (auth.TokenSet, error)
	TokenByRefresh(ctx context.Context, refreshToken string) (auth.TokenSet, error)
}

// Refresher adapts an OAuthClient to auth.Refresher.
type Refresher struct {
	Client OAuthClient
}

func (r Refresher) Refresh(ctx context.Context, current auth.TokenSet) (auth.TokenSet, error) {
	return r.Client.TokenByRefresh(ctx, current.RefreshToken)
}
