// Package competitor looks up JAN codes on the competitor retail site.
package competitor

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/janprice/internal/cache"
	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/ratelimit"
)

const (
	searchPath = "/search/keyword/"

	tileSelector  = ".productItem"
	linkSelector  = ".productItem__link"
	priceSelector = ".productItem__price"
	alertSelector = ".productItem__stock--alert"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var digitsRe = regexp.MustCompile(`\d+`)

// ErrNoPrice is returned when a result tile carries no readable price.
var ErrNoPrice = errors.New("listing has no price")

// statusError marks an HTTP answer worth retrying.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

type Options struct {
	BaseURL    string
	Limiter    *rate.Limiter
	MaxRetries int
	Backoff    time.Duration // attempt n waits n*n*Backoff
	Timeout    time.Duration
	Cache      *cache.Cache // nil disables caching
	CacheTTL   time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// cachedResult stores misses too, so an absent JAN is not searched twice.
type cachedResult struct {
	Found   bool                     `json:"found"`
	Listing *model.CompetitorListing `json:"listing,omitempty"`
}

type Matcher struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
	cache   *cache.Cache
	ttl     time.Duration
	ua      string
	logger  *zap.Logger
}

func NewMatcher(opts Options) (*Matcher, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid competitor base url %q", opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	backoff := opts.Backoff
	if backoff == 0 {
		backoff = time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		base:    base,
		client:  client,
		limiter: opts.Limiter,
		retries: opts.MaxRetries,
		backoff: backoff,
		cache:   opts.Cache,
		ttl:     opts.CacheTTL,
		ua:      ua,
		logger:  logger,
	}, nil
}

// SearchURL is the keyword search page for a JAN code.
func (m *Matcher) SearchURL(code string) string {
	return m.base.String() + searchPath + url.PathEscape(code)
}

// Match searches the competitor site for product's JAN and returns the
// first listing. It returns nil, nil when the site has no listing.
// Transport failures are faults.Network errors.
func (m *Matcher) Match(ctx context.Context, product model.ResolvedProduct) (*model.CompetitorListing, error) {
	code := product.StableCode
	if code == "" {
		return nil, nil
	}

	key := cache.CompetitorKey(code)
	if m.cache != nil && m.ttl > 0 {
		var hit cachedResult
		if found, _ := m.cache.Get(key, &hit); found {
			m.logger.Debug("competitor: cache hit", zap.String("jan", code), zap.Bool("found", hit.Found))
			if !hit.Found {
				return nil, nil
			}
			return hit.Listing, nil
		}
	}

	listing, err := m.searchWithRetry(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNoPrice) {
			return nil, faults.WithMessage(faults.MatchMiss, "competitor parse",
				fmt.Sprintf("%s: 価格を読み取れませんでした。", code), err)
		}
		m.logger.Warn("competitor: search failed", zap.String("jan", code), zap.Error(err))
		return nil, faults.WithMessage(faults.Network, "competitor search",
			fmt.Sprintf("%s: 検索中にエラーが発生しました。", code), err)
	}

	if m.cache != nil && m.ttl > 0 {
		if err := m.cache.Put(key, cachedResult{Found: listing != nil, Listing: listing}, m.ttl); err != nil {
			m.logger.Warn("competitor: cache write failed", zap.Error(err))
		}
	}
	return listing, nil
}

func (m *Matcher) searchWithRetry(ctx context.Context, code string) (*model.CompetitorListing, error) {
	var lastErr error

	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*attempt) * m.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		listing, err := m.search(ctx, code)
		if err == nil {
			return listing, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		m.logger.Debug("competitor: retrying", zap.String("jan", code), zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return nil, fmt.Errorf("search failed after %d attempts: %w", m.retries+1, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, ErrNoPrice) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (m *Matcher) search(ctx context.Context, code string) (*model.CompetitorListing, error) {
	if err := ratelimit.Wait(ctx, m.limiter); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.SearchURL(code), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	m.setBrowserHeaders(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	reader, err := getReader(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Close()

	return ParseListing(reader, m.base, code)
}

func (m *Matcher) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", m.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// getReader decodes the body. Closing the result does not close resp.Body.
func getReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// ParseListing reads the first result tile of a search page. Relative links
// are resolved against base. It returns nil, nil when there is no tile.
func ParseListing(r io.Reader, base *url.URL, code string) (*model.CompetitorListing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing search page: %w", err)
	}

	tile := doc.Find(tileSelector).First()
	if tile.Length() == 0 {
		tile = doc.Selection
	}

	link := tile.Find(linkSelector).First()
	href, ok := link.Attr("href")
	if link.Length() == 0 || !ok {
		return nil, nil
	}

	price, err := parsePrice(tile.Find(priceSelector).First().Text())
	if err != nil {
		return nil, err
	}

	listing := &model.CompetitorListing{
		StableCode: code,
		URL:        resolveURL(base, href),
		SitePrice:  price,
		Stock:      model.InStock,
	}
	if tile.Find(alertSelector).Length() > 0 {
		listing.Stock = model.OutOfStock
	}
	return listing, nil
}

// parsePrice strips thousands separators and reads the first digit run.
func parsePrice(text string) (int, error) {
	text = strings.ReplaceAll(text, ",", "")
	m := digitsRe.FindString(text)
	if m == "" {
		return 0, ErrNoPrice
	}
	return strconv.Atoi(m)
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
