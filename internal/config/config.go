// Package config provides configuration loading and validation for janprice.
// Values come from the environment; the CLI loads a .env file first.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SourceReport  = "report"
	SourceCrawler = "crawler"

	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// Config holds everything a reconciliation run needs.
type Config struct {
	// Credentials
	RefreshToken string `validate:"required"`
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	TokenScope   string

	// Endpoints
	TokenURL          string `validate:"required,url"`
	APIBaseURL        string `validate:"required,url"`
	CompetitorBaseURL string `validate:"required,url"`

	MarketplaceID string `validate:"required"`
	SellerID      string

	// Run shape
	Source          string `validate:"oneof=report crawler"`
	Budget          int    `validate:"gt=0"`
	BatchSize       int    `validate:"gt=0"`
	ReportBatchSize int    `validate:"gt=0,lte=20"`
	FlagThreshold   int    `validate:"gt=0,lt=100"`
	Segments        []Segment

	// Crawler
	SettleDelay    time.Duration
	BrowserTimeout time.Duration

	// Report ingestion
	WorkDir        string `validate:"required"`
	ReportEncoding string `validate:"oneof=utf-8 shift_jis"`

	// Competitor
	CompetitorRPS     float64 `validate:"gt=0"`
	CompetitorRetries int     `validate:"gte=0"`
	RequestTimeout    time.Duration
	CacheTTL          time.Duration

	// Persistence
	LedgerDSN string `validate:"required"`

	// Scheduling
	Schedule string

	Verbose bool
}

// Default returns a Config with every non-secret field set.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		TokenScope:        "sellingpartnerapi::migration",
		TokenURL:          "https://api.amazon.co.jp/auth/o2/token",
		APIBaseURL:        "https://sellingpartnerapi-fe.amazon.com",
		CompetitorBaseURL: "https://shopping.bookoff.co.jp",
		MarketplaceID:     "A1VC38T7YXB528",
		Source:            SourceCrawler,
		Budget:            350000,
		BatchSize:         10,
		ReportBatchSize:   20,
		FlagThreshold:     35,
		Segments:          DefaultSegments(),
		SettleDelay:       3 * time.Second,
		BrowserTimeout:    60 * time.Second,
		WorkDir:           filepath.Join(home, "Documents", "Amazon"),
		ReportEncoding:    EncodingUTF8,
		CompetitorRPS:     1,
		CompetitorRetries: 2,
		RequestTimeout:    30 * time.Second,
		CacheTTL:          30 * time.Minute,
		LedgerDSN:         "database.db",
	}
}

// FromEnv overlays environment variables on Default().
func FromEnv() (*Config, error) {
	cfg := Default()

	cfg.RefreshToken = getenv("SPAPI_REFRESH_TOKEN", cfg.RefreshToken)
	cfg.ClientID = getenv("SPAPI_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = getenv("SPAPI_CLIENT_SECRET", cfg.ClientSecret)
	cfg.TokenScope = getenv("SPAPI_TOKEN_SCOPE", cfg.TokenScope)
	cfg.TokenURL = getenv("SPAPI_TOKEN_URL", cfg.TokenURL)
	cfg.APIBaseURL = getenv("SPAPI_BASE_URL", cfg.APIBaseURL)
	cfg.MarketplaceID = getenv("SPAPI_MARKETPLACE_ID", cfg.MarketplaceID)
	cfg.SellerID = getenv("SPAPI_SELLER_ID", cfg.SellerID)
	cfg.CompetitorBaseURL = getenv("COMPETITOR_BASE_URL", cfg.CompetitorBaseURL)
	cfg.Source = strings.ToLower(getenv("JANPRICE_SOURCE", cfg.Source))
	cfg.WorkDir = getenv("JANPRICE_WORK_DIR", cfg.WorkDir)
	cfg.ReportEncoding = strings.ToLower(getenv("JANPRICE_REPORT_ENCODING", cfg.ReportEncoding))
	cfg.LedgerDSN = getenv("JANPRICE_LEDGER_DSN", cfg.LedgerDSN)
	cfg.Schedule = getenv("JANPRICE_SCHEDULE", cfg.Schedule)

	var err error
	if cfg.Budget, err = getenvInt("JANPRICE_BUDGET", cfg.Budget); err != nil {
		return nil, err
	}
	if cfg.FlagThreshold, err = getenvInt("JANPRICE_FLAG_THRESHOLD", cfg.FlagThreshold); err != nil {
		return nil, err
	}
	if cfg.CompetitorRetries, err = getenvInt("COMPETITOR_RETRIES", cfg.CompetitorRetries); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = getenvDuration("CRAWLER_SETTLE_DELAY", cfg.SettleDelay); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("COMPETITOR_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if v := os.Getenv("COMPETITOR_RPS"); v != "" {
		if cfg.CompetitorRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("COMPETITOR_RPS: %w", err)
		}
	}
	if v := os.Getenv("JANPRICE_VERBOSE"); v != "" {
		cfg.Verbose, _ = strconv.ParseBool(v)
	}

	return &cfg, nil
}

// Validate checks struct constraints and the segment table.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := ValidateSegments(c.Segments, c.Budget); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// CachePath is where competitor lookups are cached between requests.
func (c *Config) CachePath() string {
	return filepath.Join(c.WorkDir, "competitor_cache.json")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
