package collector

import (
	"github.com/researchaccelerator-hub/shorts-scraper/config"
)

// FromConfig builds the façade from the configured engine preference: the
// configured engine becomes the preferred backend and the other one the
// fallback.
func FromConfig(cfg config.ScraperConfig) *Facade {
	stealthBackend := NewStealthBackend(cfg)
	standardBackend := NewStandardBackend(cfg)

	if cfg.Engine == config.EngineStandard {
		return NewFacade(standardBackend, stealthBackend)
	}
	return NewFacade(stealthBackend, standardBackend)
}
