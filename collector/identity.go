package collector

import (
	"math/rand/v2"
	"time"
)

// userAgents is the pool a session's identity is drawn from. Current desktop
// Chrome builds on the three major platforms.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
}

// identity is the randomized fingerprint for one browsing session.
type identity struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

func randomIdentity() identity {
	return identity{
		UserAgent:      userAgents[rand.IntN(len(userAgents))],
		ViewportWidth:  1366 + rand.IntN(201) - 80,
		ViewportHeight: 900 + rand.IntN(201) - 80,
	}
}

// scrollPause returns a randomized delay between scroll steps, roughly
// 0.85-1.8s, emulating human pacing and giving lazy-loaded content time to
// render.
func scrollPause() time.Duration {
	return 850*time.Millisecond + time.Duration(rand.IntN(950))*time.Millisecond
}

// scrollDelta returns a randomized per-step scroll distance in pixels.
func scrollDelta() int {
	return 900 + rand.IntN(600)
}

// stealthInitScript suppresses the automation signals page scripts probe
// for. Injected before any page script runs.
const stealthInitScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['vi-VN', 'vi', 'en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`
