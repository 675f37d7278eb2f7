// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/ssobridge/api/schemas"
)

// -- Upstream Collaborator Mocks --

// MockRedirectSource mocks schemas.RedirectFragmentSource.
type MockRedirectSource struct {
	mock.Mock
}

func (m *MockRedirectSource) FetchRedirectFragment(ctx context.Context) (string, string, error) {
	args := m.Called(ctx)
	return args.String(0), args.String(1), args.Error(2)
}

// MockParamExtractor mocks schemas.QueryParamExtractor.
type MockParamExtractor struct {
	mock.Mock
}

func (m *MockParamExtractor) RequiredQueryParams(fragment string) (schemas.QueryParams, error) {
	args := m.Called(fragment)
	return args.Get(0).(schemas.QueryParams), args.Error(1)
}

// -- Browser Mocks --

// MockBrowserDriver mocks schemas.BrowserDriver.
type MockBrowserDriver struct {
	mock.Mock
}

func (m *MockBrowserDriver) Acquire(ctx context.Context) (schemas.BrowserHandle, error) {
	args := m.Called(ctx)
	if h := args.Get(0); h != nil {
		return h.(schemas.BrowserHandle), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockBrowserHandle mocks schemas.BrowserHandle.
type MockBrowserHandle struct {
	mock.Mock
}

func (m *MockBrowserHandle) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockBrowserHandle) HarvestCookies(ctx context.Context) ([]schemas.BrowserCookie, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.([]schemas.BrowserCookie), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserHandle) Release() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ schemas.RedirectFragmentSource = (*MockRedirectSource)(nil)
	_ schemas.QueryParamExtractor    = (*MockParamExtractor)(nil)
	_ schemas.BrowserDriver          = (*MockBrowserDriver)(nil)
	_ schemas.BrowserHandle          = (*MockBrowserHandle)(nil)
)
