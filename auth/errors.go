package auth

import (
	"errors"
)

var (
	ErrNoToken        = errors.New("auth: no token in store")
	ErrNoRefreshToken = errors.New("auth: token set has no refresh token")
)

type fatalMarker interface {
	Fatal() bool
}

// IsFatal reports whether err means the stored credentials can never be
// refreshed and the player must sign in again.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNoRefreshToken) {
		return true
	}

	var marker fatalMarker
	if !errors.As(err, &marker) {
		return false
	}

	return marker.Fatal()
}
