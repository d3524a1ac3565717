package auth

import "time"

// TokenSet is an IAM session for one signed-in player.
type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	UserID           string
	Namespace        string
	DisplayName      string
}

func (t TokenSet) Clone() TokenSet {
	return t
}

// ExpiresWithin reports whether the access token is unusable at now+skew.
func (t TokenSet) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return true
	}

	return !now.Add(skew).Before(t.ExpiresAt)
}
