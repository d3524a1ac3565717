package iam

import (
	"errors"
	"fmt"
	"strings"
)

type OAuthError struct {
	StatusCode       int
	OAuthError       string
	ErrorDescription string
	ErrorCode        int
	Message          string
}

func (e *OAuthError) Error() string {
	parts := make([]string, 0, 4)
	if e.ErrorCode != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.ErrorCode))
	}
	if e.OAuthError != "" {
		parts = append(parts, e.OAuthError)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.ErrorDescription != "" {
		parts = append(parts, e.ErrorDescription)
	}

	if len(parts) == 0 {
		return fmt.Sprintf("iam oauth error (status=%d)", e.StatusCode)
	}

	return fmt.Sprintf("iam oauth error (status=%d): %s", e.StatusCode, strings.Join(parts, " | "))
}

func (e *OAuthError) Retryable() bool {
	if e == nil {
		return false
	}

	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode <= 599)
}

// Fatal reports a grant the server will never accept again.
func (e *OAuthError) Fatal() bool {
	if e == nil {
		return false
	}

	switch strings.ToLower(e.OAuthError) {
	case "invalid_grant", "unauthorized_client", "invalid_client":
		return true
	}

	return false
}

func IsInvalidGrant(err error) bool {
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		return false
	}

	return oauthErr.Fatal()
}
