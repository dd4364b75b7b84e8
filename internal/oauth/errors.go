package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSignedIn means the session holds no usable credential. It is
	// recovered from by running the login flow again.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrCSRFMismatch means the callback's state did not match a pending
	// login of this session. The attempt must not be retried.
	ErrCSRFMismatch = errors.New("oauth state mismatch")

	// ErrAccessDenied means the visitor declined the consent screen.
	ErrAccessDenied = errors.New("access denied by user")

	// ErrProvider matches every *ProviderError.
	ErrProvider = errors.New("authorization provider returned an error")

	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrTokenRefreshFailed  = errors.New("token refresh failed")
)

// ProviderError carries the error= value of a callback. An access_denied
// code also matches ErrAccessDenied.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider error: %s", e.Code)
	}
	return fmt.Sprintf("provider error: %s: %s", e.Code, e.Description)
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProvider:
		return true
	case ErrAccessDenied:
		return e.Code == "access_denied"
	}
	return false
}

// Token endpoint operations.
const (
	OpExchange = "exchange"
	OpRefresh  = "refresh"
)

// TokenError reports a failed call to the token endpoint.
//
// Rejected is set when the provider answered with an error (as opposed to a
// transport failure). A rejected refresh leaves the session signed out and
// then also matches ErrNotSignedIn.
type TokenError struct {
	Op          string
	StatusCode  int
	Code        string
	Description string
	Rejected    bool
	Err         error
}

func (e *TokenError) Error() string {
	msg := "token " + e.Op + " failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" (%s)", e.Code)
	}
	if e.Err != nil && e.StatusCode == 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenError) Unwrap() error { return e.Err }

func (e *TokenError) Is(target error) bool {
	switch target {
	case ErrTokenExchangeFailed:
		return e.Op == OpExchange
	case ErrTokenRefreshFailed:
		return e.Op == OpRefresh
	case ErrNotSignedIn:
		return e.Op == OpRefresh && e.Rejected
	}
	return false
}
