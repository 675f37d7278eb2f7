// internal/auth/redirect.go
package auth

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ssobridge/api/schemas"
	"github.com/xkilldash9x/ssobridge/internal/network"
	"github.com/xkilldash9x/ssobridge/internal/observability"
)

// RetryConfig defines retry behavior for the redirect fetch.
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// HTTPRedirectSource asks the application for its login redirect and reads
// the handshake fragment off the Location header.
type HTTPRedirectSource struct {
	appURL string
	client *retryablehttp.Client
	logger *zap.Logger
}

var _ schemas.RedirectFragmentSource = (*HTTPRedirectSource)(nil)

// NewHTTPRedirectSource builds a source for appURL. Redirects are never
// followed; transport errors and 5xx responses are retried per retry.
func NewHTTPRedirectSource(appURL string, cc *network.ClientConfig, retry RetryConfig, logger *zap.Logger) *HTTPRedirectSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("redirect")

	rc := retryablehttp.NewClient()
	rc.HTTPClient = network.NewClient(cc).Client
	rc.Logger = observability.NewLeveledLogger(logger)
	rc.RetryMax = retry.MaxRetries
	if retry.MinWait > 0 {
		rc.RetryWaitMin = retry.MinWait
	}
	if retry.MaxWait > 0 {
		rc.RetryWaitMax = retry.MaxWait
	}

	return &HTTPRedirectSource{appURL: appURL, client: rc, logger: logger}
}

// FetchRedirectFragment returns the fragment of the redirect location and the
// host (with port, when present) it points at.
func (s *HTTPRedirectSource) FetchRedirectFragment(ctx context.Context) (string, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.appURL, nil)
	if err != nil {
		return "", "", &schemas.RedirectFetchError{URL: s.appURL, Reason: "invalid application URL", Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", &schemas.RedirectFetchError{URL: s.appURL, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", "", &schemas.RedirectFetchError{URL: s.appURL, Reason: "application did not redirect (status " + resp.Status + ")"}
	}
	loc, err := resp.Location()
	if err != nil {
		return "", "", &schemas.RedirectFetchError{URL: s.appURL, Reason: "redirect has no usable Location header", Err: err}
	}
	if loc.Host == "" {
		return "", "", &schemas.RedirectFetchError{URL: s.appURL, Reason: "redirect location has no host"}
	}

	s.logger.Debug("Redirect received.",
		zap.Int("status", resp.StatusCode),
		zap.String("server", loc.Host),
		zap.Bool("has_fragment", loc.Fragment != ""))
	return loc.EscapedFragment(), loc.Host, nil
}
