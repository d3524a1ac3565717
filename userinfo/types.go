// Package userinfo resolves user ids to display information through a
// loop-confined cache in front of a batched provider.
package userinfo

import (
	"context"
	"errors"
)

var ErrNoProvider = errors.New("userinfo: provider not configured")

const defaultNamePrefix = "Player-"

type Info struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// Name returns the display name, falling back to DefaultDisplayName.
func (i Info) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}

	return DefaultDisplayName(i.UserID)
}

// DefaultDisplayName is shown for users without a profile name.
func DefaultDisplayName(userID string) string {
	if len(userID) > 5 {
		userID = userID[:5]
	}

	return defaultNamePrefix + userID
}

// Provider resolves a batch of ids. Unknown ids are omitted from the result.
type Provider interface {
	BulkUserInfo(ctx context.Context, localUser string, ids []string) ([]Info, error)
}

// Completion receives the resolved subset of the requested ids.
type Completion func(infos []Info, err error)
