package client

import (
	"context"

	"github.com/ceskypane/abwars/auth"
)

// storeTokens serves bearer tokens straight from the store. It is used when no
// IAM client is configured, so there is nothing to refresh with.
type storeTokens struct {
	store auth.TokenStore
}

func (p *storeTokens) AccessToken(ctx context.Context) (string, error) {
	tokens, ok, err := p.store.Load(ctx)
	if err != nil {
		return "", err
	}

	if !ok || tokens.AccessToken == "" {
		return "", auth.ErrNoToken
	}

	return tokens.AccessToken, nil
}

func (p *storeTokens) Refresh(context.Context) error {
	return auth.ErrNoToken
}

// tokenIdentity maps the single local player to the signed-in IAM user.
type tokenIdentity struct {
	store auth.TokenStore
}

func (i tokenIdentity) UniqueID(localUser int) (string, bool) {
	if localUser != 0 {
		return "", false
	}

	tokens, ok, err := i.store.Load(context.Background())
	if err != nil || !ok || tokens.UserID == "" {
		return "", false
	}

	return tokens.UserID, true
}

func (i tokenIdentity) HasController(localUser int) bool {
	_, ok := i.UniqueID(localUser)
	return ok
}
