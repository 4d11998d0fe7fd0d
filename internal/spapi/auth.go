package spapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/ratelimit"
)

// ErrNoToken is returned when the identity endpoint answers without a token.
var ErrNoToken = errors.New("identity endpoint returned no access token")

// Credentials are the long-lived values exchanged for an access token.
type Credentials struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
	Scope        string
}

// OAuthToken represents an LWA token response.
type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenBroker exchanges the refresh credential for short-lived access tokens.
// It does not cache: every call performs a fresh exchange.
type TokenBroker struct {
	tokenURL   string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewTokenBroker creates a broker for the given identity endpoint.
func NewTokenBroker(tokenURL string, creds Credentials, limits *ratelimit.Limits, logger *zap.Logger) *TokenBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &TokenBroker{
		tokenURL:   tokenURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	if limits != nil {
		b.limiter = limits.Identity
	}
	return b
}

// AccessToken performs the refresh_token grant. Any failure is a
// faults.Auth error and should abort the run.
func (b *TokenBroker) AccessToken(ctx context.Context) (string, error) {
	token, err := b.refresh(ctx)
	if err != nil {
		b.logger.Error("spapi: token exchange failed", zap.Error(err))
		return "", faults.WithMessage(faults.Auth, "access token", "アクセストークンを取得できませんでした。", err)
	}
	b.logger.Debug("spapi: access token refreshed", zap.Int("expires_in", token.ExpiresIn))
	return token.AccessToken, nil
}

func (b *TokenBroker) refresh(ctx context.Context) (*OAuthToken, error) {
	if err := ratelimit.Wait(ctx, b.limiter); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", b.creds.RefreshToken)
	if b.creds.Scope != "" {
		data.Set("scope", b.creds.Scope)
	}
	data.Set("client_id", b.creds.ClientID)
	data.Set("client_secret", b.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token OAuthToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &token, nil
}
