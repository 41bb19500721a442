package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/researchaccelerator-hub/shorts-scraper/config"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// StandardBackend collects cards with chromedp. It is the fallback engine:
// an independently implemented CDP driver, so it does not share failure
// modes with the stealth backend when a site update breaks one of them.
type StandardBackend struct {
	cfg config.ScraperConfig
}

// NewStandardBackend returns a chromedp-based backend using the given
// scraper settings.
func NewStandardBackend(cfg config.ScraperConfig) *StandardBackend {
	return &StandardBackend{cfg: cfg}
}

// Name identifies the backend in logs.
func (b *StandardBackend) Name() string { return config.EngineStandard }

// Collect launches a disposable chromedp session, scrolls the target page
// and extracts up to MaxCards cards.
func (b *StandardBackend) Collect(ctx context.Context, req Request) ([]model.Card, error) {
	ident := randomIdentity()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", b.cfg.Locale),
		chromedp.UserAgent(ident.UserAgent),
		chromedp.WindowSize(ident.ViewportWidth, ident.ViewportHeight),
	)
	if b.cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(b.cfg.Proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	// Budget covers navigation plus the paced scroll phase.
	deadline := b.cfg.NavigationTimeout + time.Duration(req.ScrollCount)*2*time.Second
	tabCtx, cancelDeadline := context.WithTimeout(tabCtx, deadline)
	defer cancelDeadline()

	actions := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthInitScript).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetTimezoneOverride(b.cfg.Timezone).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetLocaleOverride().WithLocale(b.cfg.Locale).Do(ctx)
		}),
		chromedp.Navigate(req.URL),
		// Structural readiness only; feed pages never settle into a full load.
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	for i := 0; i < req.ScrollCount; i++ {
		actions = append(actions,
			chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", scrollDelta()), nil),
			chromedp.Sleep(scrollPause()),
		)
	}

	var cards []model.Card
	extract := fmt.Sprintf("(%s)(%q, %q, %q, %d)",
		cardExtractionJS, req.CardSelector, req.LinkSelector, req.TextSelector, MaxCards)
	actions = append(actions, chromedp.Evaluate(extract, &cards))

	if err := chromedp.Run(tabCtx, actions); err != nil {
		return nil, fmt.Errorf("chromedp collection failed for %s: %w", req.URL, err)
	}

	if len(cards) > MaxCards {
		cards = cards[:MaxCards]
	}
	return cards, nil
}
