// Package signal implements the daily signal aggregation engine: weighting,
// denoising, rolling statistics, cross-source surprise, and the driver that
// writes the entity/industry/market daily panels.
package signal

import (
	"math"
	"strings"
	"time"

	"github.com/dmarche/newsquant/internal/config"
)

// minTau guards the decay constant against zero or negative configuration.
const minTau = time.Microsecond

// FreshnessWeight returns exp(-age/tau) where age = max(0, now-published).
// A zero published time or a future timestamp yields 1.0, so malformed input
// degrades to full weight rather than erasing the observation. The result is
// always in (0, 1].
func FreshnessWeight(published, now time.Time, tau time.Duration) float64 {
	if published.IsZero() {
		return 1.0
	}
	if tau < minTau {
		tau = minTau
	}
	age := now.Sub(published)
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-float64(age) / float64(tau))
}

// AuthorityWeight returns the trust multiplier for a publisher. Unknown or
// empty publishers receive the configured default, never zero.
func AuthorityWeight(auth config.Authority, source string) float64 {
	name := strings.TrimSpace(source)
	if name != "" {
		if w, ok := auth.Sources[name]; ok {
			return w
		}
	}
	if auth.Default > 0 {
		return auth.Default
	}
	return 1.0
}
