package schemas

import (
	"fmt"
)

// RedirectFetchError reports that the application did not produce a usable
// redirect.
type RedirectFetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RedirectFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("redirect fetch from %s failed: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("redirect fetch from %s failed: %s", e.URL, e.Reason)
}

func (e *RedirectFetchError) Unwrap() error { return e.Err }

// MissingParamError reports a required handshake parameter absent from the
// redirect fragment.
type MissingParamError struct {
	Param string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("required query parameter %q is missing", e.Param)
}

// NavigationError reports that the browser could not load a URL.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("browser navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// AuthSSOError is a terminal sign-on failure attributed to a strategy.
type AuthSSOError struct {
	AuthType AuthType
	Message  string
}

func (e *AuthSSOError) Error() string { return e.Message }

// NewAuthSSOError prefixes msg with the strategy's name.
func NewAuthSSOError(authType AuthType, msg string) *AuthSSOError {
	return &AuthSSOError{
		AuthType: authType,
		Message:  fmt.Sprintf("%s: %s", authType, msg),
	}
}
