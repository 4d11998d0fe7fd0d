// Package pipeline drives a reconciliation run: candidates from a source are
// resolved against the catalog, matched on the competitor site, reconciled
// and appended to the ledger while progress events flow to the display.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/config"
	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/ledger"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/progress"
	"github.com/guarzo/janprice/internal/source"
)

// TokenSource mints an access token. Called once per batch.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Resolver turns a batch of ASINs into priced products.
type Resolver interface {
	Resolve(ctx context.Context, token string, batch []model.Candidate) ([]model.ResolvedProduct, error)
}

// Matcher finds the competitor listing for a product. A nil listing with a
// nil error means there is nothing to compare.
type Matcher interface {
	Match(ctx context.Context, product model.ResolvedProduct) (*model.CompetitorListing, error)
}

// Options tune a run.
type Options struct {
	RunID string
	// Budget caps the scan position. A source.Preparer replaces it with its
	// candidate count.
	Budget        int
	FlagThreshold int
	// Segments drive the page cursor and per-segment progress. Leave empty
	// for sources that ignore the page cursor.
	Segments []config.Segment
	Logger   *zap.Logger
}

// Controller runs one reconciliation pass. It is not reusable.
type Controller struct {
	tokens    TokenSource
	resolver  Resolver
	matcher   Matcher
	ledger    ledger.Ledger
	source    source.CandidateSource
	publisher progress.Publisher
	opts      Options
	logger    *zap.Logger

	stopping atomic.Bool

	mu      sync.Mutex
	state   State
	metrics Metrics
}

func NewController(
	tokens TokenSource,
	resolver Resolver,
	matcher Matcher,
	lg ledger.Ledger,
	src source.CandidateSource,
	publisher progress.Publisher,
	opts Options,
) *Controller {
	if opts.FlagThreshold <= 0 {
		opts.FlagThreshold = model.DefaultFlagThreshold
	}
	if publisher == nil {
		publisher = progress.Discard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		tokens:    tokens,
		resolver:  resolver,
		matcher:   matcher,
		ledger:    lg,
		source:    src,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With(zap.String("run_id", opts.RunID)),
	}
}

// Stop asks the run to end. It is observed before each batch and before
// each candidate; the call in flight finishes first.
func (c *Controller) Stop() {
	c.stopping.Store(true)
}

// State returns a snapshot of the scan position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Metrics returns a snapshot of the run counters.
func (c *Controller) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Run executes the pass. It returns nil when the budget is spent, the
// source is exhausted or Stop was called. A prepared source runs until it is
// exhausted and its progress counts candidates taken from it; a fatal fault or a cancelled
// context is returned as an error. A stop event is always emitted last.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.metrics = Metrics{StartTime: time.Now()}
	c.mu.Unlock()

	c.publisher.Publish(progress.Start(c.opts.RunID))
	defer func() {
		c.mu.Lock()
		c.metrics.finish(time.Now())
		m := c.metrics
		c.mu.Unlock()
		c.logger.Info("pipeline: run finished", m.fields()...)
		c.publisher.Publish(progress.Stop(c.opts.RunID))
	}()

	// A prepared source knows its size: the budget counts its candidates and
	// the run ends only when it is exhausted.
	budget := c.opts.Budget
	drain := false
	if p, ok := c.source.(source.Preparer); ok {
		c.publisher.Publish(progress.Reading(c.opts.RunID))
		n, err := p.Prepare(ctx)
		if err != nil {
			c.fail(err)
			return err
		}
		budget = n
		drain = true
	}

	if err := c.ledger.Reset(ctx); err != nil {
		c.fail(err)
		return err
	}

	c.logger.Info("pipeline: run started", zap.Int("budget", budget))

	consumed, reported := 0, 0
	for drain || c.position() < budget {
		if c.stopping.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		st := c.advance()
		batch, err := c.source.NextBatch(ctx, st.Position, st.PageCursor)
		if errors.Is(err, source.ErrExhausted) {
			c.logger.Info("pipeline: source exhausted", zap.Int("position", st.Position))
			if drain && reported < budget {
				c.publishPercent(budget, budget)
			}
			return nil
		}
		if err != nil {
			c.fail(err)
			if faults.IsFatal(err) {
				return err
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}
		start := consumed
		consumed += len(batch)

		c.mu.Lock()
		c.metrics.Batches++
		c.mu.Unlock()

		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.fail(err)
			return err
		}

		products, err := c.resolver.Resolve(ctx, token, batch)
		if err != nil {
			c.fail(err)
			if faults.IsFatal(err) {
				return err
			}
			continue
		}

		for i, p := range products {
			if c.stopping.Load() {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			pos := c.step()
			if p.StableCode != "" {
				c.reconcile(ctx, pos, p)
			}
			at := pos
			if drain {
				at = min(start+i+1, consumed)
			}
			c.publishPercent(at, budget)
			reported = at
		}
	}
	return nil
}

// reconcile handles one candidate. Failures are reported and swallowed.
func (c *Controller) reconcile(ctx context.Context, seq int, p model.ResolvedProduct) {
	listing, err := c.matcher.Match(ctx, p)
	if err != nil {
		c.fail(err)
		return
	}
	if listing == nil {
		c.logger.Debug("pipeline: no competitor listing", zap.String("jan", p.StableCode))
		return
	}

	rec, ok := model.Reconcile(seq, p, *listing, c.opts.FlagThreshold)
	if !ok {
		return
	}
	if err := c.ledger.Append(ctx, rec); err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	c.metrics.Records++
	c.mu.Unlock()
	c.publisher.Publish(progress.Record(c.opts.RunID, rec))
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.metrics.Errors++
	c.mu.Unlock()
	c.logger.Warn("pipeline: step failed",
		zap.String("kind", faults.KindOf(err).String()),
		zap.Error(err))
	c.publisher.Publish(progress.Error(c.opts.RunID, faults.Message(err)))
}

func (c *Controller) publishPercent(pos, budget int) {
	e := progress.Percent(c.opts.RunID, pos, budget)
	if seg, ok := config.SegmentFor(c.opts.Segments, pos); ok {
		e = e.WithSegment(seg.Name, seg.Start, seg.End)
	}
	c.publisher.Publish(e)
}

func (c *Controller) position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Position
}

func (c *Controller) advance() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Advance(c.state.Position+1, c.opts.Segments)
	return c.state
}

func (c *Controller) step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Position++
	c.metrics.Candidates++
	return c.state.Position
}
