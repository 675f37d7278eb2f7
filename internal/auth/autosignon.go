// internal/auth/autosignon.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ssobridge/api/schemas"
	"github.com/xkilldash9x/ssobridge/internal/config"
)

// confirmPath is the GAS endpoint that completes the auto login handshake.
const confirmPath = "/GAS/autologin"

// ConfirmURL builds the confirmation URL. Parameter order is fixed and
// instanceID is query escaped.
func ConfirmURL(server, instanceID string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     server,
		Path:     confirmPath,
		RawQuery: "PingFedDropOff=true&instanceId=" + url.QueryEscape(instanceID) + "&gasWebClient=true",
	}
	return u.String()
}

// AutoSignOn signs in by letting a real browser complete the identity
// provider's handshake and bridging the result into an HTTP session.
type AutoSignOn struct {
	source    schemas.RedirectFragmentSource
	extractor schemas.QueryParamExtractor
	driver    schemas.BrowserDriver
	bridge    *Bridge
	projector *HeaderProjector
	logger    *zap.Logger
}

var _ SignOnStrategy = (*AutoSignOn)(nil)

// AutoSignOnDeps are the collaborators of an AutoSignOn.
type AutoSignOnDeps struct {
	Source    schemas.RedirectFragmentSource
	Extractor schemas.QueryParamExtractor
	Driver    schemas.BrowserDriver
	Bridge    *Bridge
	Projector *HeaderProjector
	Logger    *zap.Logger
}

// NewAutoSignOn wires an AutoSignOn. Extractor, Bridge and Projector fall
// back to defaults when nil.
func NewAutoSignOn(deps AutoSignOnDeps) (*AutoSignOn, error) {
	if deps.Source == nil {
		return nil, errors.New("auto sign-on requires a redirect fragment source")
	}
	if deps.Driver == nil {
		return nil, errors.New("auto sign-on requires a browser driver")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AutoSignOn{
		source:    deps.Source,
		extractor: deps.Extractor,
		driver:    deps.Driver,
		bridge:    deps.Bridge,
		projector: deps.Projector,
		logger:    logger.Named("autosignon"),
	}
	if a.extractor == nil {
		a.extractor = FragmentParamExtractor{}
	}
	if a.bridge == nil {
		a.bridge = NewBridge(schemas.AuthTypeAutoSignOn, SessionOptions{}, logger)
	}
	if a.projector == nil {
		a.projector = NewHeaderProjector(config.ReferenceProfileRules())
	}
	return a, nil
}

// Name identifies the strategy.
func (a *AutoSignOn) Name() schemas.AuthType { return schemas.AuthTypeAutoSignOn }

// Authenticate runs one sign-on attempt. On success the session holds every
// harvested cookie and the configured headers; the post-redirect URL is
// always empty for this strategy. A browser acquired by the attempt is
// released exactly once on every path.
func (a *AutoSignOn) Authenticate(ctx context.Context) (*Session, string, error) {
	log := a.logger.With(zap.String("attempt_id", uuid.New().String()))
	log.Info("Starting auto sign-on.")

	log.Debug("Fetching redirect fragment.")
	fragment, server, err := a.source.FetchRedirectFragment(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch redirect fragment: %w", err)
	}

	params, err := a.extractor.RequiredQueryParams(fragment)
	if err != nil {
		return nil, "", fmt.Errorf("failed to extract handshake parameters: %w", err)
	}
	for _, p := range a.projector.RequiredParams() {
		if !params.Has(p) {
			return nil, "", &schemas.MissingParamError{Param: p}
		}
	}

	confirmURL := ConfirmURL(server, params.InstanceID())
	log = log.With(zap.String("server", server))

	cookies, err := a.harvest(ctx, log, confirmURL)
	if err != nil {
		return nil, "", err
	}

	session, ack, err := a.bridge.Bridge(ctx, cookies, confirmURL)
	if err != nil {
		var ssoErr *schemas.AuthSSOError
		if errors.As(err, &ssoErr) {
			log.Warn("Confirmation rejected.", zap.Error(err))
			return nil, "", err
		}
		return nil, "", fmt.Errorf("failed to confirm auto sign-on: %w", err)
	}

	a.projector.Project(session, ack, params)
	log.Info("Auto sign-on complete.", zap.Int("cookies", len(cookies)))
	return session, "", nil
}

// harvest drives the browser through the confirmation URL and returns its
// cookies. The browser is gone by the time harvest returns.
func (a *AutoSignOn) harvest(ctx context.Context, log *zap.Logger, confirmURL string) ([]schemas.BrowserCookie, error) {
	handle, err := a.driver.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser: %w", err)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := handle.Release(); err != nil {
			log.Warn("Browser release failed.", zap.Error(err))
		}
	}
	defer release()

	log.Debug("Navigating browser to confirmation URL.")
	if err := handle.Navigate(ctx, confirmURL); err != nil {
		return nil, fmt.Errorf("browser navigation failed: %w", err)
	}

	cookies, err := handle.HarvestCookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to harvest cookies: %w", err)
	}
	release()
	return cookies, nil
}
