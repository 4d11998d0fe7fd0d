package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guarzo/janprice/internal/cache"
	"github.com/guarzo/janprice/internal/catalog"
	"github.com/guarzo/janprice/internal/competitor"
	"github.com/guarzo/janprice/internal/config"
	"github.com/guarzo/janprice/internal/crawler"
	"github.com/guarzo/janprice/internal/ingest"
	"github.com/guarzo/janprice/internal/ledger"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/pipeline"
	"github.com/guarzo/janprice/internal/progress"
	"github.com/guarzo/janprice/internal/ratelimit"
	"github.com/guarzo/janprice/internal/source"
	"github.com/guarzo/janprice/internal/spapi"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass",
	Long: `Collects candidates (from the merchant listings report or by crawling the
sales-rank search pages), resolves them against the catalog, searches BOOKOFF
for each JAN and records every cheaper listing in the ledger.

Ctrl-C once stops after the current candidate; twice aborts.`,
	RunE: runCmd,
}

var (
	runSource string
	runBudget int
	runASINs  string
	runQuiet  bool
)

func init() {
	runCommand.Flags().StringVar(&runSource, "source", "", "Candidate source: report or crawler (defaults to JANPRICE_SOURCE)")
	runCommand.Flags().IntVar(&runBudget, "budget", 0, "Scan position budget (crawler source only)")
	runCommand.Flags().StringVar(&runASINs, "asins", "", "Comma separated ASINs to reconcile instead of a source")
	runCommand.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not draw the progress display")

	rootCmd.AddCommand(runCommand)
}

func runCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("source") {
		cfg.Source = strings.ToLower(runSource)
	}
	if cmd.Flags().Changed("budget") {
		cfg.Budget = runBudget
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	var out io.Writer = os.Stdout
	if runQuiet {
		out = nil
	}
	return runOnce(cmd.Context(), cfg, parseASINs(runASINs), out, interrupts, logger)
}

// parseASINs splits a comma separated flag value, dropping blanks.
func parseASINs(s string) []model.Candidate {
	var out []model.Candidate
	for _, part := range strings.Split(s, ",") {
		if a := strings.TrimSpace(part); a != "" {
			out = append(out, model.Candidate(a))
		}
	}
	return out
}

// runOnce wires one controller and display and waits for both. The first
// value on interrupts requests a stop, the second cancels the run.
func runOnce(
	ctx context.Context,
	cfg *config.Config,
	asins []model.Candidate,
	out io.Writer,
	interrupts <-chan os.Signal,
	logger *zap.Logger,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	limits := ratelimit.NewDefaultLimits(cfg.CompetitorRPS)
	broker := spapi.NewTokenBroker(cfg.TokenURL, spapi.Credentials{
		RefreshToken: cfg.RefreshToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scope:        cfg.TokenScope,
	}, limits, logger)
	client := spapi.NewClient(spapi.ClientConfig{
		BaseURL:       cfg.APIBaseURL,
		MarketplaceID: cfg.MarketplaceID,
		SellerID:      cfg.SellerID,
		Timeout:       cfg.RequestTimeout,
		Limits:        limits,
		Logger:        logger,
	})

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}

	lg, err := ledger.Open(ctx, cfg.LedgerDSN, logger)
	if err != nil {
		return err
	}
	defer lg.Close()

	var lookups *cache.Cache
	if cfg.CacheTTL > 0 {
		if lookups, err = cache.New(cfg.CachePath()); err != nil {
			logger.Warn("competitor cache unavailable", zap.Error(err))
			lookups = nil
		}
	}
	matcher, err := competitor.NewMatcher(competitor.Options{
		BaseURL:    cfg.CompetitorBaseURL,
		Limiter:    limits.Competitor,
		MaxRetries: cfg.CompetitorRetries,
		Timeout:    cfg.RequestTimeout,
		Cache:      lookups,
		CacheTTL:   cfg.CacheTTL,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var (
		src      source.CandidateSource
		segments []config.Segment
	)
	switch {
	case len(asins) > 0:
		src = source.NewStatic(asins, cfg.ReportBatchSize)
	case cfg.Source == config.SourceReport:
		svc := ingest.NewService(client, broker, ingest.Options{
			WorkDir:  cfg.WorkDir,
			Encoding: cfg.ReportEncoding,
			Logger:   logger,
		})
		src = source.NewReportSource(svc, cfg.ReportBatchSize, logger)
	default:
		browser, err := crawler.NewChromeBrowser(ctx, cfg.SettleDelay, cfg.BrowserTimeout, logger)
		if err != nil {
			return err
		}
		defer browser.Close()
		src = source.NewCrawlerSource(crawler.New(browser, cfg.Segments, limits.Crawler, logger), cfg.BatchSize)
		segments = cfg.Segments
	}

	events := progress.NewChannel(64)
	display := progress.NewDisplay(out, cfg.Budget, out == nil)
	ctrl := pipeline.NewController(broker, catalog.NewResolver(client, logger), matcher, lg, src, events,
		pipeline.Options{
			RunID:         runID,
			Budget:        cfg.Budget,
			FlagThreshold: cfg.FlagThreshold,
			Segments:      segments,
			Logger:        logger,
		})

	done := make(chan struct{})
	defer close(done)
	go func() {
		n := 0
		for {
			select {
			case <-interrupts:
				n++
				if n == 1 {
					logger.Info("stop requested, finishing current candidate")
					ctrl.Stop()
				} else {
					cancel()
				}
			case <-done:
				return
			}
		}
	}()

	var g errgroup.Group
	g.Go(func() error {
		defer events.Close()
		return ctrl.Run(ctx)
	})
	g.Go(func() error {
		display.Run(events.Events())
		return nil
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("run aborted")
		return nil
	}
	return err
}
