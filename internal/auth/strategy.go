// internal/auth/strategy.go
package auth

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ssobridge/api/schemas"
	"github.com/xkilldash9x/ssobridge/internal/browser"
	"github.com/xkilldash9x/ssobridge/internal/config"
	"github.com/xkilldash9x/ssobridge/internal/network"
)

// SignOnStrategy establishes an authenticated session against an application.
type SignOnStrategy interface {
	Name() schemas.AuthType
	// Authenticate returns the session and, for strategies that have one,
	// the URL the caller should continue at.
	Authenticate(ctx context.Context) (*Session, string, error)
}

// StrategyFactory builds a strategy from the loaded configuration.
type StrategyFactory func(cfg *config.Config, logger *zap.Logger) (SignOnStrategy, error)

// StrategyRegistry maps auth types to the factories that build them.
type StrategyRegistry struct {
	mu        sync.RWMutex
	factories map[schemas.AuthType]StrategyFactory
}

// NewStrategyRegistry returns a registry with the built-in strategies.
func NewStrategyRegistry() *StrategyRegistry {
	r := &StrategyRegistry{factories: make(map[schemas.AuthType]StrategyFactory)}
	r.Register(schemas.AuthTypeAutoSignOn, func(cfg *config.Config, logger *zap.Logger) (SignOnStrategy, error) {
		return NewAutoSignOnFromConfig(cfg, logger)
	})
	return r
}

// Register associates a factory with an auth type, replacing any previous one.
func (r *StrategyRegistry) Register(t schemas.AuthType, f StrategyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// Build resolves signon.strategy and constructs the strategy.
func (r *StrategyRegistry) Build(cfg *config.Config, logger *zap.Logger) (SignOnStrategy, error) {
	t, ok := schemas.ParseAuthType(cfg.SignOn.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown sign-on strategy: %q", cfg.SignOn.Strategy)
	}
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for sign-on strategy: %s", t)
	}
	return f(cfg, logger)
}

// NewAutoSignOnFromConfig wires the production collaborators: an HTTP
// redirect source, a Chromium driver and a resty-backed bridge.
func NewAutoSignOnFromConfig(cfg *config.Config, logger *zap.Logger) (*AutoSignOn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignOn.AppURL == "" {
		return nil, fmt.Errorf("signon.app_url is required")
	}

	cc, err := network.ClientConfigFrom(cfg.Network, logger)
	if err != nil {
		return nil, err
	}
	retry := RetryConfig{
		MaxRetries: cfg.Network.RetryMax,
		MinWait:    cfg.Network.RetryWaitMin,
		MaxWait:    cfg.Network.RetryWaitMax,
	}
	sessionOpts := SessionOptions{
		Transport: network.NewHTTPTransport(cc),
		Timeout:   cfg.Network.Timeout,
		UserAgent: cfg.Network.UserAgent,
		RateLimit: cfg.Network.RateLimit,
		Logger:    logger,
	}

	return NewAutoSignOn(AutoSignOnDeps{
		Source:    NewHTTPRedirectSource(cfg.SignOn.AppURL, cc, retry, logger),
		Extractor: FragmentParamExtractor{},
		Driver:    browser.NewDriver(cfg.Browser, logger),
		Bridge:    NewBridge(schemas.AuthTypeAutoSignOn, sessionOpts, logger),
		Projector: NewHeaderProjectorFromConfig(cfg.SignOn.Headers),
		Logger:    logger,
	})
}
