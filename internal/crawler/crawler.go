// Package crawler collects candidate ASINs from marketplace search pages
// ranked by sales, one category segment at a time.
package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/janprice/internal/config"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/ratelimit"
)

// tileSelector matches one search result tile carrying its ASIN.
const tileSelector = ".s-asin[data-asin]"

type Crawler struct {
	browser  Browser
	segments []config.Segment
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func New(browser Browser, segments []config.Segment, limiter *rate.Limiter, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(segments) == 0 {
		segments = config.DefaultSegments()
	}
	return &Crawler{browser: browser, segments: segments, limiter: limiter, logger: logger}
}

// PageURL returns the search URL for the segment covering position.
func (c *Crawler) PageURL(position, page int) (string, config.Segment) {
	seg, _ := config.SegmentFor(c.segments, position)
	return seg.PageURL(page), seg
}

// FetchPageCandidates renders one search page and returns its ASINs in page
// order. It never fails: any error is logged and yields no candidates.
func (c *Crawler) FetchPageCandidates(ctx context.Context, position, page int) []model.Candidate {
	url, seg := c.PageURL(position, page)

	if err := ratelimit.Wait(ctx, c.limiter); err != nil {
		c.logger.Warn("crawler: rate limiter", zap.Error(err))
		return nil
	}

	html, err := c.browser.Render(ctx, url)
	if err != nil {
		c.logger.Warn("crawler: render failed",
			zap.String("segment", seg.Name),
			zap.Int("page", page),
			zap.Error(err))
		return nil
	}

	candidates, err := ParseCandidates(html)
	if err != nil {
		c.logger.Warn("crawler: parse failed", zap.String("segment", seg.Name), zap.Error(err))
		return nil
	}

	c.logger.Debug("crawler: page scraped",
		zap.String("segment", seg.Name),
		zap.Int("position", position),
		zap.Int("page", page),
		zap.Int("candidates", len(candidates)))
	return candidates
}

// ParseCandidates extracts the data-asin of every result tile, skipping
// tiles with an empty ASIN.
func ParseCandidates(html string) ([]model.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []model.Candidate
	doc.Find(tileSelector).Each(func(_ int, s *goquery.Selection) {
		asin := strings.TrimSpace(s.AttrOr("data-asin", ""))
		if asin != "" {
			out = append(out, model.Candidate(asin))
		}
	})
	return out, nil
}
