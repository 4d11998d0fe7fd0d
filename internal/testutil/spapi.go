package testutil

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// CatalogFixture describes one ASIN served by the fake catalog endpoint.
type CatalogFixture struct {
	JAN       string
	Category  string
	Rank      int
	ListPrice float64 // 0 omits list_price
}

// SPAPIFixture configures a fake Selling Partner API.
type SPAPIFixture struct {
	AccessToken   string // empty makes the token endpoint answer without a token
	TokenStatus   int
	DocumentID    string
	ReportBody    string // served gzipped at /files/report.gz
	Catalog       map[string]CatalogFixture
	Competitive   map[string]float64
	CatalogStatus int
}

// SPAPIServer is an httptest server implementing the endpoints the
// pipeline uses. Call counters are safe to read after requests complete.
type SPAPIServer struct {
	*httptest.Server
	Fixture SPAPIFixture

	mu              sync.Mutex
	TokenCalls      int
	CatalogCalls    int
	PricingCalls    int
	LastIdentifiers []string
	LastTokenForm   map[string]string
}

// NewSPAPIServer starts a fake Selling Partner API and registers cleanup.
func NewSPAPIServer(t *testing.T, fixture SPAPIFixture) *SPAPIServer {
	t.Helper()
	s := &SPAPIServer{Fixture: fixture}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/o2/token", s.handleToken)
	mux.HandleFunc("/reports/2021-06-30/reports", s.handleReports)
	mux.HandleFunc("/reports/2021-06-30/documents/", s.handleDocument)
	mux.HandleFunc("/files/report.gz", s.handleFile)
	mux.HandleFunc("/catalog/2022-04-01/items", s.handleCatalog)
	mux.HandleFunc("/products/pricing/v0/competitivePrice", s.handlePricing)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// TokenURL is the identity endpoint of the fake server.
func (s *SPAPIServer) TokenURL() string { return s.URL + "/auth/o2/token" }

// Counts returns token, catalog and pricing call counts.
func (s *SPAPIServer) Counts() (token, catalog, pricing int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TokenCalls, s.CatalogCalls, s.PricingCalls
}

// TokenForm returns the form fields of the last token request.
func (s *SPAPIServer) TokenForm() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastTokenForm
}

// Identifiers returns the ASINs of the last catalog request.
func (s *SPAPIServer) Identifiers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastIdentifiers
}

func (s *SPAPIServer) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.TokenCalls++
	s.LastTokenForm = map[string]string{}
	for k := range r.PostForm {
		s.LastTokenForm[k] = r.PostForm.Get(k)
	}
	s.mu.Unlock()

	if s.Fixture.TokenStatus != 0 && s.Fixture.TokenStatus != http.StatusOK {
		http.Error(w, `{"error":"invalid_grant"}`, s.Fixture.TokenStatus)
		return
	}
	writeJSON(w, map[string]any{
		"access_token": s.Fixture.AccessToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (s *SPAPIServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("x-amz-access-token") == "" {
		http.Error(w, `{"errors":[{"code":"Unauthorized"}]}`, http.StatusForbidden)
		return false
	}
	return true
}

func (s *SPAPIServer) handleReports(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	reports := []map[string]string{}
	if s.Fixture.DocumentID != "" {
		reports = append(reports, map[string]string{
			"reportId":         "report-1",
			"reportDocumentId": s.Fixture.DocumentID,
			"processingStatus": "DONE",
		})
	}
	writeJSON(w, map[string]any{"reports": reports})
}

func (s *SPAPIServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/reports/2021-06-30/documents/")
	if id != s.Fixture.DocumentID {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{
		"reportDocumentId":     id,
		"url":                  s.URL + "/files/report.gz",
		"compressionAlgorithm": "GZIP",
	})
}

func (s *SPAPIServer) handleFile(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(s.Fixture.ReportBody))
	_ = zw.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf.Bytes())
}

func (s *SPAPIServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	ids := splitIdentifiers(r.URL.Query().Get("identifiers"))

	s.mu.Lock()
	s.CatalogCalls++
	s.LastIdentifiers = ids
	s.mu.Unlock()

	if s.Fixture.CatalogStatus != 0 && s.Fixture.CatalogStatus != http.StatusOK {
		http.Error(w, `{"errors":[{"code":"InvalidInput"}]}`, s.Fixture.CatalogStatus)
		return
	}

	items := []map[string]any{}
	for _, asin := range ids {
		fx, ok := s.Fixture.Catalog[asin]
		if !ok {
			continue
		}
		attrs := map[string]any{}
		if fx.ListPrice > 0 {
			attrs["list_price"] = []map[string]any{{"value": fx.ListPrice, "currency": "JPY"}}
		}
		idents := []map[string]string{}
		if fx.JAN != "" {
			idents = append(idents, map[string]string{"identifierType": "JAN", "identifier": fx.JAN})
		}
		ranks := []map[string]any{}
		if fx.Category != "" {
			ranks = append(ranks, map[string]any{"title": fx.Category, "rank": fx.Rank})
		}
		items = append(items, map[string]any{
			"asin":        asin,
			"attributes":  attrs,
			"identifiers": []map[string]any{{"marketplaceId": "A1VC38T7YXB528", "identifiers": idents}},
			"salesRanks":  []map[string]any{{"marketplaceId": "A1VC38T7YXB528", "displayGroupRanks": ranks}},
		})
	}
	writeJSON(w, map[string]any{"numberOfResults": len(items), "items": items})
}

func (s *SPAPIServer) handlePricing(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	s.PricingCalls++
	s.mu.Unlock()

	payload := []map[string]any{}
	for _, asin := range splitIdentifiers(r.URL.Query().Get("Asins")) {
		prices := []map[string]any{}
		if amount, ok := s.Fixture.Competitive[asin]; ok {
			prices = append(prices, map[string]any{
				"CompetitivePriceId": "1",
				"Price": map[string]any{
					"ListingPrice": map[string]any{"CurrencyCode": "JPY", "Amount": amount},
				},
			})
		}
		payload = append(payload, map[string]any{
			"ASIN":   asin,
			"status": "Success",
			"Product": map[string]any{
				"CompetitivePricing": map[string]any{"CompetitivePrices": prices},
			},
		})
	}
	writeJSON(w, map[string]any{"payload": payload})
}

func splitIdentifiers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
