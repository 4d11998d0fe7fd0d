package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Browser renders a URL and returns the resulting document HTML.
type Browser interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeBrowser renders pages in one shared headless Chrome process, opening
// a new tab per page.
type ChromeBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	settle        time.Duration
	timeout       time.Duration
	logger        *zap.Logger
}

// NewChromeBrowser starts Chrome. Close must be called to stop it.
func NewChromeBrowser(ctx context.Context, settle, timeout time.Duration, logger *zap.Logger) (*ChromeBrowser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("lang", "ja-JP"),
		)...,
	)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// launch the process now so a missing Chrome fails here and not mid-run
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &ChromeBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		settle:        settle,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// Render navigates a fresh tab to url, waits for the body plus the settle
// delay, and returns the outer HTML.
func (b *ChromeBrowser) Render(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// propagate caller cancellation into the tab
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	b.logger.Debug("crawler: page rendered",
		zap.String("url", url),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)))
	return html, nil
}

func (b *ChromeBrowser) Close() {
	b.browserCancel()
	b.allocCancel()
}
