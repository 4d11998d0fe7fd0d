// Package spapi talks to the Selling Partner API: token exchange, reports,
// catalog items and competitive pricing.
package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/janprice/internal/ratelimit"
)

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spapi %s: HTTP %d: %s", e.Path, e.Code, e.Body)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL       string
	MarketplaceID string
	SellerID      string
	Timeout       time.Duration
	Limits        *ratelimit.Limits
	Logger        *zap.Logger
}

// Client performs authenticated GETs against the Selling Partner API. The
// access token is passed per call since the caller refreshes it per batch.
type Client struct {
	baseURL       string
	marketplaceID string
	sellerID      string
	httpClient    *http.Client
	limits        *ratelimit.Limits
	logger        *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limits := cfg.Limits
	if limits == nil {
		limits = ratelimit.NewDefaultLimits(1)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		marketplaceID: cfg.MarketplaceID,
		sellerID:      cfg.SellerID,
		httpClient:    &http.Client{Timeout: timeout},
		limits:        limits,
		logger:        logger,
	}
}

func (c *Client) getJSON(ctx context.Context, limiter *rate.Limiter, token, path string, query url.Values, into any) error {
	if err := ratelimit.Wait(ctx, limiter); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-amz-access-token", token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("spapi: request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
