// internal/browser/persona.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/ssobridge/internal/config"
)

// hideAutomationScript runs before any page script on every new document.
const hideAutomationScript = `(() => {
  Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined, configurable: true });
  if (!window.chrome) { window.chrome = { runtime: {} }; }
})();`

// personaTasks returns the CDP actions that shape how the browser presents
// itself to the identity provider. An empty result means nothing to apply.
func personaTasks(cfg config.BrowserConfig) chromedp.Tasks {
	var tasks chromedp.Tasks

	if cfg.Stealth {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(hideAutomationScript).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject stealth script: %w", err)
			}
			return nil
		}))
	}
	if cfg.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(cfg.Timezone))
	}
	if cfg.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(cfg.Locale))
	}
	if al := acceptLanguage(cfg.Languages); al != "" {
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": al}))
	}
	return tasks
}

// acceptLanguage renders languages as an Accept-Language value with
// descending quality weights.
func acceptLanguage(languages []string) string {
	var parts []string
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if len(parts) == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 10 - len(parts)
		if q < 1 {
			q = 1
		}
		parts = append(parts, fmt.Sprintf("%s;q=0.%d", lang, q))
	}
	return strings.Join(parts, ",")
}
