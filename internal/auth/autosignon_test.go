// internal/auth/autosignon_test.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ssobridge/api/schemas"
	"github.com/xkilldash9x/ssobridge/internal/config"
	"github.com/xkilldash9x/ssobridge/internal/mocks"
)

// gasFixture is a fake GAS backend reachable over TLS plus mocked upstream
// collaborators wired into an AutoSignOn.
type gasFixture struct {
	server  *httptest.Server
	hits    atomic.Int32
	source  *mocks.MockRedirectSource
	driver  *mocks.MockBrowserDriver
	handle  *mocks.MockBrowserHandle
	confirm string
}

func newGASFixture(t *testing.T, ackBody string) *gasFixture {
	t.Helper()
	f := &gasFixture{
		source: new(mocks.MockRedirectSource),
		driver: new(mocks.MockBrowserDriver),
		handle: new(mocks.MockBrowserHandle),
	}
	f.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, ackBody)
	}))
	t.Cleanup(f.server.Close)

	host := f.server.Listener.Addr().String()
	f.confirm = "https://" + host + "/GAS/autologin?PingFedDropOff=true&instanceId=inst-1&gasWebClient=true"
	f.source.On("FetchRedirectFragment", mock.Anything).Return("instanceId=inst-1&realm=corp", host, nil)
	return f
}

func (f *gasFixture) strategy(t *testing.T, headers config.HeadersConfig) *AutoSignOn {
	t.Helper()
	logger := zaptest.NewLogger(t)
	a, err := NewAutoSignOn(AutoSignOnDeps{
		Source:    f.source,
		Driver:    f.driver,
		Bridge:    NewBridge(schemas.AuthTypeAutoSignOn, SessionOptions{Transport: f.server.Client().Transport}, logger),
		Projector: NewHeaderProjectorFromConfig(headers),
		Logger:    logger,
	})
	require.NoError(t, err)
	return a
}

var harvested = []schemas.BrowserCookie{
	{Name: "JSESSIONID", Value: "abc", Domain: "gas.example.com", Path: "/"},
	{Name: "PF", Value: "xyz", Domain: "idp.example.com", Path: "/"},
}

func TestConfirmURL(t *testing.T) {
	assert.Equal(t,
		"https://gas.example.com/GAS/autologin?PingFedDropOff=true&instanceId=abc123&gasWebClient=true",
		ConfirmURL("gas.example.com", "abc123"))
	assert.Equal(t,
		"https://gas.example.com:8443/GAS/autologin?PingFedDropOff=true&instanceId=a+b%26c%3D&gasWebClient=true",
		ConfirmURL("gas.example.com:8443", "a b&c="))
}

func TestAutoSignOn_Name(t *testing.T) {
	a, err := NewAutoSignOn(AutoSignOnDeps{Source: new(mocks.MockRedirectSource), Driver: new(mocks.MockBrowserDriver)})
	require.NoError(t, err)
	assert.Equal(t, schemas.AuthTypeAutoSignOn, a.Name())
	assert.Equal(t, "AUTO_SIGN_ON", a.Name().String())
}

func TestNewAutoSignOn_RequiresCollaborators(t *testing.T) {
	_, err := NewAutoSignOn(AutoSignOnDeps{Driver: new(mocks.MockBrowserDriver)})
	assert.Error(t, err)
	_, err = NewAutoSignOn(AutoSignOnDeps{Source: new(mocks.MockRedirectSource)})
	assert.Error(t, err)
}

func TestAutoSignOn_Success(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R1"}`)
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil).Once()
	f.handle.On("Navigate", mock.Anything, f.confirm).Return(nil).Once()
	f.handle.On("HarvestCookies", mock.Anything).Return(harvested, nil).Once()
	f.handle.On("Release").Return(nil).Once()

	session, postRedirect, err := f.strategy(t, config.HeadersConfig{}).Authenticate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Empty(t, postRedirect)

	wantCookies := []schemas.BrowserCookie{{Name: "JSESSIONID", Value: "abc"}, {Name: "PF", Value: "xyz"}}
	if diff := cmp.Diff(wantCookies, session.Cookies()); diff != "" {
		t.Errorf("session cookies mismatch (-want +got):\n%s", diff)
	}
	wantHeaders := map[string]string{"X-Reference-Id": "R1", "X-Instance-Id": "inst-1"}
	if diff := cmp.Diff(wantHeaders, session.Headers()); diff != "" {
		t.Errorf("session headers mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, int32(1), f.hits.Load())
	f.handle.AssertNumberOfCalls(t, "Release", 1)
	f.driver.AssertExpectations(t)
	f.handle.AssertExpectations(t)
}

func TestAutoSignOn_EmptyHarvest(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R2"}`)
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil)
	f.handle.On("Navigate", mock.Anything, f.confirm).Return(nil)
	f.handle.On("HarvestCookies", mock.Anything).Return([]schemas.BrowserCookie{}, nil)
	f.handle.On("Release").Return(nil)

	session, _, err := f.strategy(t, config.HeadersConfig{}).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, session.Cookies())
	assert.Equal(t, "R2", session.Header("X-Reference-Id"))
	f.handle.AssertNumberOfCalls(t, "Release", 1)
}

func TestAutoSignOn_NoReferenceID(t *testing.T) {
	f := newGASFixture(t, `{"status":"pending"}`)
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil)
	f.handle.On("Navigate", mock.Anything, f.confirm).Return(nil)
	f.handle.On("HarvestCookies", mock.Anything).Return(harvested, nil)
	f.handle.On("Release").Return(nil)

	session, postRedirect, err := f.strategy(t, config.HeadersConfig{}).Authenticate(context.Background())
	require.Error(t, err)
	assert.Nil(t, session, "no partially populated session escapes")
	assert.Empty(t, postRedirect)

	var ssoErr *schemas.AuthSSOError
	require.True(t, errors.As(err, &ssoErr))
	assert.Equal(t, "AUTO_SIGN_ON: No referenceId in auto sign-on response.", ssoErr.Message)
	f.handle.AssertNumberOfCalls(t, "Release", 1)
}

func TestAutoSignOn_NavigationFailure(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R1"}`)
	navErr := &schemas.NavigationError{URL: f.confirm, Err: errors.New("net::ERR_CONNECTION_REFUSED")}
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil)
	f.handle.On("Navigate", mock.Anything, f.confirm).Return(navErr)
	f.handle.On("Release").Return(nil)

	session, _, err := f.strategy(t, config.HeadersConfig{}).Authenticate(context.Background())
	require.Error(t, err)
	assert.Nil(t, session)

	var gotNav *schemas.NavigationError
	require.True(t, errors.As(err, &gotNav))
	assert.Equal(t, f.confirm, gotNav.URL)
	f.handle.AssertNumberOfCalls(t, "Release", 1)
	f.handle.AssertNotCalled(t, "HarvestCookies", mock.Anything)
	assert.Equal(t, int32(0), f.hits.Load(), "no confirmation after a failed navigation")
}

func TestAutoSignOn_HarvestFailureReleases(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R1"}`)
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil)
	f.handle.On("Navigate", mock.Anything, f.confirm).Return(nil)
	f.handle.On("HarvestCookies", mock.Anything).Return(nil, errors.New("target closed"))
	f.handle.On("Release").Return(errors.New("already gone"))

	_, _, err := f.strategy(t, config.HeadersConfig{}).Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed", "release errors never mask the primary error")
	f.handle.AssertNumberOfCalls(t, "Release", 1)
}

func TestAutoSignOn_CanceledDuringNavigation(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R1"}`)
	ctx, cancel := context.WithCancel(context.Background())
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil)
	f.handle.On("Navigate", mock.Anything, f.confirm).Run(func(mock.Arguments) { cancel() }).Return(context.Canceled)
	f.handle.On("Release").Return(nil)

	_, _, err := f.strategy(t, config.HeadersConfig{}).Authenticate(ctx)
	require.ErrorIs(t, err, context.Canceled)
	f.handle.AssertNumberOfCalls(t, "Release", 1)
}

func TestAutoSignOn_AcquireFailure(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R1"}`)
	f.driver.On("Acquire", mock.Anything).Return(nil, errors.New("chrome not found"))

	_, _, err := f.strategy(t, config.HeadersConfig{}).Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire browser")
	f.handle.AssertNotCalled(t, "Release")
}

func TestAutoSignOn_UpstreamFailuresSkipBrowser(t *testing.T) {
	t.Run("redirect fetch", func(t *testing.T) {
		source := new(mocks.MockRedirectSource)
		driver := new(mocks.MockBrowserDriver)
		source.On("FetchRedirectFragment", mock.Anything).
			Return("", "", &schemas.RedirectFetchError{URL: "https://app.example.com", Reason: "application did not redirect"})

		a, err := NewAutoSignOn(AutoSignOnDeps{Source: source, Driver: driver, Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		_, _, err = a.Authenticate(context.Background())

		var fetchErr *schemas.RedirectFetchError
		require.True(t, errors.As(err, &fetchErr))
		driver.AssertNotCalled(t, "Acquire", mock.Anything)
	})

	t.Run("missing instance id", func(t *testing.T) {
		source := new(mocks.MockRedirectSource)
		driver := new(mocks.MockBrowserDriver)
		source.On("FetchRedirectFragment", mock.Anything).Return("realm=corp", "gas.example.com", nil)

		a, err := NewAutoSignOn(AutoSignOnDeps{Source: source, Driver: driver, Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		_, _, err = a.Authenticate(context.Background())

		var missing *schemas.MissingParamError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "instance_id", missing.Param)
		driver.AssertNotCalled(t, "Acquire", mock.Anything)
	})

	t.Run("param required by a header rule", func(t *testing.T) {
		source := new(mocks.MockRedirectSource)
		driver := new(mocks.MockBrowserDriver)
		source.On("FetchRedirectFragment", mock.Anything).Return("instanceId=inst-1", "gas.example.com", nil)

		a, err := NewAutoSignOn(AutoSignOnDeps{
			Source: source,
			Driver: driver,
			Projector: NewHeaderProjector([]config.HeaderRule{
				{Name: "X-Tenant", Source: config.HeaderSourceParam, Param: "tenant"},
			}),
			Logger: zaptest.NewLogger(t),
		})
		require.NoError(t, err)
		_, _, err = a.Authenticate(context.Background())

		var missing *schemas.MissingParamError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "tenant", missing.Param)
		driver.AssertNotCalled(t, "Acquire", mock.Anything)
	})
}

func TestAutoSignOn_ExtractorReceivesFragment(t *testing.T) {
	f := newGASFixture(t, `{"referenceId":"R1"}`)
	extractor := new(mocks.MockParamExtractor)
	extractor.On("RequiredQueryParams", "instanceId=inst-1&realm=corp").
		Return(schemas.NewQueryParams("inst-1", url.Values{"realm": {"corp"}}), nil)
	f.driver.On("Acquire", mock.Anything).Return(f.handle, nil)
	f.handle.On("Navigate", mock.Anything, f.confirm).Return(nil)
	f.handle.On("HarvestCookies", mock.Anything).Return(harvested, nil)
	f.handle.On("Release").Return(nil)

	logger := zaptest.NewLogger(t)
	a, err := NewAutoSignOn(AutoSignOnDeps{
		Source:    f.source,
		Extractor: extractor,
		Driver:    f.driver,
		Bridge:    NewBridge(schemas.AuthTypeAutoSignOn, SessionOptions{Transport: f.server.Client().Transport}, logger),
		Projector: NewHeaderProjector([]config.HeaderRule{
			{Name: "X-Realm", Source: config.HeaderSourceParam, Param: "realm"},
		}),
		Logger: logger,
	})
	require.NoError(t, err)

	session, _, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "corp", session.Header("X-Realm"))
	extractor.AssertExpectations(t)
}

func TestStrategyRegistry_Build(t *testing.T) {
	logger := zaptest.NewLogger(t)
	registry := NewStrategyRegistry()

	cfg := config.NewDefaultConfig()
	_, err := registry.Build(cfg, logger)
	assert.ErrorContains(t, err, "signon.app_url is required")

	cfg.SignOn.AppURL = "https://app.example.com/"
	strategy, err := registry.Build(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, schemas.AuthTypeAutoSignOn, strategy.Name())
	assert.IsType(t, &AutoSignOn{}, strategy)

	cfg.SignOn.Strategy = "SAML_POST"
	_, err = registry.Build(cfg, logger)
	assert.ErrorContains(t, err, "unknown sign-on strategy")
}
