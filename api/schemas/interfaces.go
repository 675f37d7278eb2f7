package schemas

import (
	"context"
)

// -- Upstream Collaborators --

// RedirectFragmentSource produces the handshake fragment and the session
// server hostname from the application's initial redirect.
type RedirectFragmentSource interface {
	// FetchRedirectFragment returns the fragment carried by the redirect
	// location and the hostname of the server it points to. It fails with a
	// *RedirectFetchError if the application does not redirect.
	FetchRedirectFragment(ctx context.Context) (fragment string, server string, err error)
}

// QueryParamExtractor parses a redirect fragment into the parameters the
// confirmation handshake needs.
type QueryParamExtractor interface {
	// RequiredQueryParams fails with a *MissingParamError when instance_id
	// is absent.
	RequiredQueryParams(fragment string) (QueryParams, error)
}

// -- Browser Interfaces --

// BrowserDriver launches browser instances. Every call to Acquire yields an
// independent process; handles are never pooled or shared between attempts.
type BrowserDriver interface {
	Acquire(ctx context.Context) (BrowserHandle, error)
}

// BrowserHandle is exclusive ownership of one live browser for the duration
// of a single authentication attempt.
type BrowserHandle interface {
	// Navigate loads url in the handle's tab. Failures are *NavigationError.
	Navigate(ctx context.Context, url string) error
	// HarvestCookies returns the cookies visible to the current page. The
	// result may be empty and its order carries no meaning.
	HarvestCookies(ctx context.Context) ([]BrowserCookie, error)
	// Release tears down the browser. It is safe to call more than once;
	// only the first call has an effect.
	Release() error
}
