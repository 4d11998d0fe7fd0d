// Package source supplies candidate batches to the run controller, either
// from the merchant listings report or by crawling search pages.
package source

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/batch"
	"github.com/guarzo/janprice/internal/ingest"
	"github.com/guarzo/janprice/internal/model"
)

// ErrExhausted ends the run: the source has no more candidates.
var ErrExhausted = errors.New("candidate source exhausted")

// CandidateSource yields the next batch for the given scan position and
// page cursor. An empty batch is valid and means "nothing on this page".
type CandidateSource interface {
	NextBatch(ctx context.Context, position, page int) ([]model.Candidate, error)
}

// Preparer is implemented by sources that need a setup step before the
// first batch. Prepare returns the run budget.
type Preparer interface {
	Prepare(ctx context.Context) (int, error)
}

// PageFetcher returns the candidates on one search page.
type PageFetcher interface {
	FetchPageCandidates(ctx context.Context, position, page int) []model.Candidate
}

// CrawlerSource scrapes one search page per batch and regroups the ASINs
// into batches of batch.DefaultSize. It never runs dry.
type CrawlerSource struct {
	fetcher PageFetcher
	batcher *batch.Batcher
}

func NewCrawlerSource(fetcher PageFetcher, size int) *CrawlerSource {
	return &CrawlerSource{fetcher: fetcher, batcher: batch.New(size)}
}

func (s *CrawlerSource) NextBatch(ctx context.Context, position, page int) ([]model.Candidate, error) {
	return s.batcher.PushAndDrain(s.fetcher.FetchPageCandidates(ctx, position, page)), nil
}

// Ingester produces the candidate list from the listings report.
type Ingester interface {
	Run(ctx context.Context) (*ingest.Extraction, error)
}

// ReportSource serves the extracted report in consecutive windows.
type ReportSource struct {
	ingester   Ingester
	window     int
	candidates []model.Candidate
	next       int
	logger     *zap.Logger
}

func NewReportSource(ingester Ingester, window int, logger *zap.Logger) *ReportSource {
	if window <= 0 {
		window = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportSource{ingester: ingester, window: window, logger: logger}
}

// Prepare runs the ingestion state machine. The budget is the number of
// qualifying rows.
func (s *ReportSource) Prepare(ctx context.Context) (int, error) {
	ex, err := s.ingester.Run(ctx)
	if err != nil {
		return 0, err
	}
	s.candidates = ex.Candidates
	s.next = 0
	s.logger.Info("source: report loaded", zap.Int("total", ex.Total))
	return ex.Total, nil
}

// NextBatch ignores the scan position: windows are consumed in order.
func (s *ReportSource) NextBatch(_ context.Context, _, _ int) ([]model.Candidate, error) {
	if s.next >= len(s.candidates) {
		return nil, ErrExhausted
	}
	end := s.next + s.window
	if end > len(s.candidates) {
		end = len(s.candidates)
	}
	out := s.candidates[s.next:end]
	s.next = end
	return out, nil
}

// Static serves a fixed candidate list in windows. Used by tests and by the
// run command's --asins flag.
type Static struct {
	rs *ReportSource
}

func NewStatic(candidates []model.Candidate, window int) *Static {
	rs := NewReportSource(nil, window, nil)
	rs.candidates = candidates
	return &Static{rs: rs}
}

func (s *Static) NextBatch(ctx context.Context, position, page int) ([]model.Candidate, error) {
	return s.rs.NextBatch(ctx, position, page)
}
