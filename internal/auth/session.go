// internal/auth/session.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/ssobridge/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is an authenticated HTTP client session. Cookies and headers live
// on the Session rather than on the underlying resty client and are copied
// onto every request built through Request, so the session may be shared
// between goroutines.
type Session struct {
	resty   *resty.Client
	limiter *rate.Limiter

	mu      sync.RWMutex
	cookies []*http.Cookie
	headers http.Header
}

// SessionOptions tunes a new Session.
type SessionOptions struct {
	// Transport backs the resty client. Nil keeps resty's default.
	Transport http.RoundTripper
	Timeout   time.Duration
	UserAgent string
	// RateLimit is requests per second; zero or less means unlimited.
	RateLimit float64
	// MaxResponseBytes caps every response body read through the session.
	// Zero means DefaultMaxResponseBytes; negative disables the cap.
	MaxResponseBytes int
	Logger           *zap.Logger
}

// DefaultMaxResponseBytes bounds response bodies when SessionOptions leaves
// MaxResponseBytes unset.
const DefaultMaxResponseBytes = 1 << 20

// NewSession returns an empty session.
func NewSession(opts SessionOptions) *Session {
	client := resty.New()
	// The session's own cookie list is authoritative.
	client.SetCookieJar(nil)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	switch {
	case opts.MaxResponseBytes == 0:
		client.SetResponseBodyLimit(DefaultMaxResponseBytes)
	case opts.MaxResponseBytes > 0:
		client.SetResponseBodyLimit(opts.MaxResponseBytes)
	}
	if opts.Logger != nil {
		client.SetLogger(opts.Logger.Named("resty").Sugar())
	}

	s := &Session{
		resty:   client,
		headers: make(http.Header),
	}
	s.SetRateLimit(opts.RateLimit)
	return s
}

// SetRateLimit configures rate limiting in requests per second.
func (s *Session) SetRateLimit(rps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rps <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetCookie stores a cookie by name. A later value for the same name
// replaces the earlier one in place.
func (s *Session) SetCookie(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cookies {
		if c.Name == name {
			c.Value = value
			return
		}
	}
	s.cookies = append(s.cookies, &http.Cookie{Name: name, Value: value})
}

// Cookie returns the value stored for name.
func (s *Session) Cookie(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Cookies returns the session's cookies as name/value pairs in insertion order.
func (s *Session) Cookies() []schemas.BrowserCookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schemas.BrowserCookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		out = append(out, schemas.BrowserCookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// SetHeader installs a header, replacing any previous value.
func (s *Session) SetHeader(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers.Set(name, value)
}

// Header returns the value of the named header.
func (s *Session) Header(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headers.Get(name)
}

// Headers returns a copy of the session headers.
func (s *Session) Headers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Request creates a request carrying the session's cookies and headers,
// after waiting for the rate limiter.
func (s *Session) Request(ctx context.Context) (*resty.Request, error) {
	s.mu.RLock()
	limiter := s.limiter
	s.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	req := s.resty.R().SetContext(ctx)
	for _, c := range s.cookies {
		req.SetCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	for k, v := range s.headers {
		if len(v) > 0 {
			req.SetHeader(k, v[0])
		}
	}
	return req, nil
}

// SessionSnapshot is the exportable form of a session.
type SessionSnapshot struct {
	Cookies []schemas.BrowserCookie `json:"cookies"`
	Headers map[string]string       `json:"headers"`
}

// Snapshot captures the current cookies and headers.
func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{Cookies: s.Cookies(), Headers: s.Headers()}
}

// MarshalJSON encodes the session snapshot.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// RestoreSession rebuilds a session from an exported snapshot.
func RestoreSession(data []byte, opts SessionOptions) (*Session, error) {
	var snap SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	s := NewSession(opts)
	for _, c := range snap.Cookies {
		s.SetCookie(c.Name, c.Value)
	}
	for name, value := range snap.Headers {
		s.SetHeader(name, value)
	}
	return s, nil
}
