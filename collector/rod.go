package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/config"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// StealthBackend collects cards with go-rod plus the stealth page injector.
// This is the preferred engine: it hides the usual automation signals better
// than a stock CDP session, at the cost of being more sensitive to site
// changes.
type StealthBackend struct {
	cfg config.ScraperConfig
}

// NewStealthBackend returns a rod-based backend using the given scraper
// settings.
func NewStealthBackend(cfg config.ScraperConfig) *StealthBackend {
	return &StealthBackend{cfg: cfg}
}

// Name identifies the backend in logs.
func (b *StealthBackend) Name() string { return config.EngineStealth }

// Collect launches a disposable stealth session, scrolls the target page and
// extracts up to MaxCards cards.
func (b *StealthBackend) Collect(ctx context.Context, req Request) (cards []model.Card, err error) {
	l := launcher.New().
		Headless(b.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-default-browser-check").
		Set("lang", b.cfg.Locale)
	if b.cfg.Proxy != "" {
		l = l.Proxy(b.cfg.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch stealth browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to stealth browser: %w", err)
	}
	// Teardown is unconditional: a leaked headless browser outlives the run.
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Error closing stealth browser")
		}
	}()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open stealth page: %w", err)
	}

	ident := randomIdentity()
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ident.UserAgent,
		AcceptLanguage: b.cfg.Locale,
	}); err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             ident.ViewportWidth,
		Height:            ident.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: b.cfg.Timezone}).Call(page); err != nil {
		return nil, fmt.Errorf("failed to set timezone: %w", err)
	}
	if _, err := (proto.PageAddScriptToEvaluateOnNewDocument{Source: stealthInitScript}).Call(page); err != nil {
		return nil, fmt.Errorf("failed to install init script: %w", err)
	}

	// Wait only for the structural load, not every resource: full loads on
	// feed pages take tens of seconds and enlarge the detection surface.
	nav := page.Timeout(b.cfg.NavigationTimeout)
	wait := nav.WaitEvent(&proto.PageDomContentEventFired{})
	if err := nav.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", req.URL, err)
	}
	wait()

	for i := 0; i < req.ScrollCount; i++ {
		if err := page.Mouse.Scroll(0, float64(scrollDelta()), 1); err != nil {
			return nil, fmt.Errorf("failed to scroll: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(scrollPause()):
		}
	}

	res, err := page.Eval(cardExtractionJS, req.CardSelector, req.LinkSelector, req.TextSelector, MaxCards)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cards: %w", err)
	}

	for _, item := range res.Value.Arr() {
		cards = append(cards, model.Card{
			Href: item.Get("href").Str(),
			Text: item.Get("text").Str(),
		})
		if len(cards) >= MaxCards {
			break
		}
	}
	return cards, nil
}
