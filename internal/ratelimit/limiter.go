package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limits holds one token bucket per upstream the pipeline talks to.
type Limits struct {
	Identity   *rate.Limiter
	Reports    *rate.Limiter
	Documents  *rate.Limiter
	Catalog    *rate.Limiter
	Pricing    *rate.Limiter
	Competitor *rate.Limiter
	Crawler    *rate.Limiter
}

// NewDefaultLimits creates limiters matching the published Selling Partner
// API quotas and a polite rate for the competitor site.
func NewDefaultLimits(competitorRPS float64) *Limits {
	if competitorRPS <= 0 {
		competitorRPS = 1
	}
	return &Limits{
		// LWA token endpoint: undocumented, stay conservative
		Identity: rate.NewLimiter(rate.Limit(1), 5),

		// getReports: 0.0222 rps, burst 10
		Reports: rate.NewLimiter(rate.Limit(0.0222), 10),

		// getReportDocument: 0.0167 rps, burst 15
		Documents: rate.NewLimiter(rate.Limit(0.0167), 15),

		// searchCatalogItems: 2 rps, burst 2
		Catalog: rate.NewLimiter(rate.Limit(2), 2),

		// getCompetitivePricing: 0.5 rps, burst 1
		Pricing: rate.NewLimiter(rate.Limit(0.5), 1),

		Competitor: rate.NewLimiter(rate.Limit(competitorRPS), 1),

		// One page render every two seconds on top of the settle delay
		Crawler: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Unlimited returns limiters that never block. Used by tests.
func Unlimited() *Limits {
	inf := func() *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) }
	return &Limits{
		Identity:   inf(),
		Reports:    inf(),
		Documents:  inf(),
		Catalog:    inf(),
		Pricing:    inf(),
		Competitor: inf(),
		Crawler:    inf(),
	}
}

// Wait blocks until l grants a token. A nil limiter never blocks.
func Wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
