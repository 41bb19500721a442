// Package collector extracts raw cards from platform pages using disposable
// headless-browser sessions with anti-detection measures. Two backends
// implement the same contract; the façade falls back from the preferred one
// to the other so a single flaky engine never stalls discovery.
package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// MaxCards caps the number of cards one collection returns.
const MaxCards = 30

// Request describes one page collection: where to navigate and which
// selectors identify a card, its link and its text blob.
type Request struct {
	URL          string
	CardSelector string
	LinkSelector string
	// TextSelector is optional; when empty the card's own text is used.
	TextSelector string
	ScrollCount  int
}

// Backend is a single browser-automation engine. A backend owns its session
// lifecycle: each Collect call launches an isolated session and tears it
// down before returning, on every exit path. Any failure surfaces as a
// collection failure, never as a partial card list.
type Backend interface {
	Name() string
	Collect(ctx context.Context, req Request) ([]model.Card, error)
}

// Facade selects between the preferred and fallback backends.
type Facade struct {
	preferred Backend
	fallback  Backend
}

// NewFacade builds a façade trying preferred first.
func NewFacade(preferred, fallback Backend) *Facade {
	return &Facade{preferred: preferred, fallback: fallback}
}

// Collect tries the preferred backend and, on any failure, retries with the
// fallback. Only the fallback's failure propagates: anti-detection engines
// vary in reliability per target site, and degrading gracefully matters more
// than surfacing which engine broke.
func (f *Facade) Collect(ctx context.Context, req Request) ([]model.Card, error) {
	cards, err := f.preferred.Collect(ctx, req)
	if err == nil {
		return cards, nil
	}

	log.Warn().
		Err(err).
		Str("engine", f.preferred.Name()).
		Str("url", req.URL).
		Msg("Preferred collector failed, falling back")

	cards, err = f.fallback.Collect(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fallback collector %s failed: %w", f.fallback.Name(), err)
	}
	return cards, nil
}
