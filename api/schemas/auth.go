// File: api/schemas/auth.go
package schemas

import (
	"net/url"
)

// AuthType identifies a sign-on strategy among its siblings.
type AuthType int

const (
	AuthTypeUnknown AuthType = iota
	// AuthTypeAutoSignOn bridges a browser-driven GAS auto login into an
	// HTTP client session.
	AuthTypeAutoSignOn
)

var authTypeNames = map[AuthType]string{
	AuthTypeUnknown:    "UNKNOWN",
	AuthTypeAutoSignOn: "AUTO_SIGN_ON",
}

// String returns the stable, upper snake case name of the auth type.
func (a AuthType) String() string {
	if name, ok := authTypeNames[a]; ok {
		return name
	}
	return authTypeNames[AuthTypeUnknown]
}

// ParseAuthType maps a name produced by String back to its AuthType.
func ParseAuthType(name string) (AuthType, bool) {
	for t, n := range authTypeNames {
		if t != AuthTypeUnknown && n == name {
			return t, true
		}
	}
	return AuthTypeUnknown, false
}

// BrowserCookie is a cookie as observed in the browser's jar at harvest time.
// Only Name and Value are transplanted into the HTTP session; Domain and Path
// are kept for diagnostics.
type BrowserCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// QueryParams holds the identity provider handshake parameters extracted from
// a redirect fragment. It is read-only once constructed.
type QueryParams struct {
	instanceID string
	values     url.Values
}

// NewQueryParams copies values so later mutation by the caller cannot leak in.
func NewQueryParams(instanceID string, values url.Values) QueryParams {
	copied := make(url.Values, len(values))
	for k, v := range values {
		copied[k] = append([]string(nil), v...)
	}
	return QueryParams{instanceID: instanceID, values: copied}
}

// InstanceID returns the required instance identifier.
func (q QueryParams) InstanceID() string { return q.instanceID }

// Get returns the first value of the named fragment parameter, or "".
func (q QueryParams) Get(key string) string {
	return q.values.Get(key)
}

// Has reports whether the fragment carried the named parameter.
func (q QueryParams) Has(key string) bool {
	_, ok := q.values[key]
	return ok
}

// AckPayload is the confirmation endpoint's acknowledgment.
type AckPayload struct {
	ReferenceID string
	// Raw is the undecoded response body.
	Raw []byte
}
