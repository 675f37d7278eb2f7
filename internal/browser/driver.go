// internal/browser/driver.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ssobridge/api/schemas"
	"github.com/xkilldash9x/ssobridge/internal/config"
)

const (
	defaultLaunchTimeout = 30 * time.Second
	defaultCloseTimeout  = 10 * time.Second
)

// Driver launches one Chromium process per Acquire. It holds no browser state
// of its own, so a single Driver may serve concurrent attempts.
type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ schemas.BrowserDriver = (*Driver)(nil)

// NewDriver creates a browser driver for cfg.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{cfg: cfg, logger: logger.Named("browser")}
}

// Acquire starts a browser and returns exclusive ownership of it. The
// browser's lifetime is detached from ctx: canceling ctx aborts the launch,
// but once Acquire returns only Release stops the process.
func (d *Driver) Acquire(ctx context.Context) (schemas.BrowserHandle, error) {
	id := uuid.New().String()
	log := d.logger.With(zap.String("browser_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), DefaultAllocatorOptions(d.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	h := &Handle{
		id:          id,
		cfg:         d.cfg,
		logger:      log,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	launchTimeout := d.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}
	launchCtx, cancelLaunch := context.WithTimeout(ctx, launchTimeout)
	defer cancelLaunch()

	// The first Run allocates the browser with the context it is given, so it
	// must get the undecorated tab context. The deadline is enforced here.
	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(tabCtx) }()

	select {
	case err := <-launched:
		if err != nil {
			h.Release()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-launchCtx.Done():
		h.forceRelease()
		<-launched
		return nil, fmt.Errorf("browser did not start: %w", launchCtx.Err())
	}

	if tasks := personaTasks(d.cfg); len(tasks) > 0 {
		if err := h.run(launchCtx, tasks); err != nil {
			h.Release()
			return nil, fmt.Errorf("failed to apply browser persona: %w", err)
		}
	}

	log.Debug("Browser acquired.", zap.Bool("headless", d.cfg.Headless), zap.Bool("stealth", d.cfg.Stealth))
	return h, nil
}

// Handle owns one browser process and its single tab.
type Handle struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	releaseOnce sync.Once
	releaseErr  error
}

var _ schemas.BrowserHandle = (*Handle)(nil)

// ID identifies the handle in logs.
func (h *Handle) ID() string { return h.id }

// Navigate loads url, then waits for the configured selector and settle time.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if h.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, h.cfg.NavigationTimeout)
		defer cancel()
	}

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if h.cfg.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(h.cfg.WaitSelector, chromedp.ByQuery))
	}
	if h.cfg.PostLoadWait > 0 {
		tasks = append(tasks, chromedp.Sleep(h.cfg.PostLoadWait))
	}

	h.logger.Debug("Navigating.", zap.String("url", url))
	if err := h.run(navCtx, tasks); err != nil {
		return &schemas.NavigationError{URL: url, Err: err}
	}
	return nil
}

// HarvestCookies reads the cookies visible to the current page.
func (h *Handle) HarvestCookies(ctx context.Context) ([]schemas.BrowserCookie, error) {
	var cdpCookies []*network.Cookie
	err := h.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		cdpCookies, err = network.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	cookies := make([]schemas.BrowserCookie, 0, len(cdpCookies))
	for _, c := range cdpCookies {
		cookies = append(cookies, schemas.BrowserCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	h.logger.Debug("Cookies harvested.", zap.Int("count", len(cookies)))
	return cookies, nil
}

// Release closes the browser gracefully, falling back to killing it once
// the close timeout passes. Only the first call does anything; later calls
// return the first call's result.
func (h *Handle) Release() error {
	h.releaseOnce.Do(func() {
		closeTimeout := h.cfg.CloseTimeout
		if closeTimeout <= 0 {
			closeTimeout = defaultCloseTimeout
		}
		closeCtx, cancel := context.WithTimeout(h.tabCtx, closeTimeout)
		defer cancel()

		// chromedp.Cancel already cancels the tab context on success. Calling
		// tabCancel after it would block forever for a browser that never
		// launched, so it is only the fallback.
		if err := chromedp.Cancel(closeCtx); err != nil {
			if !errors.Is(err, context.Canceled) {
				h.releaseErr = fmt.Errorf("graceful browser close failed: %w", err)
			}
			h.tabCancel()
		}
		h.allocCancel()
		h.logger.Debug("Browser released.", zap.Error(h.releaseErr))
	})
	return h.releaseErr
}

// forceRelease tears the process down without talking to it. Used when the
// launch itself is still in flight.
func (h *Handle) forceRelease() {
	h.releaseOnce.Do(func() {
		h.tabCancel()
		h.allocCancel()
		h.logger.Debug("Browser killed before launch completed.")
	})
}

// run executes actions against the tab, honoring both the browser lifetime
// and the caller's ctx.
func (h *Handle) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(h.tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
