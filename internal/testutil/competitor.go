package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// CompetitorItem is one product tile served by the fake competitor site.
type CompetitorItem struct {
	Path       string // href of the product link
	PriceText  string // e.g. "1,280円"
	OutOfStock bool
}

// CompetitorServer serves /search/keyword/{jan} result pages.
type CompetitorServer struct {
	*httptest.Server

	mu       sync.Mutex
	items    map[string][]CompetitorItem
	failures map[string]int
	hits     map[string]int
}

// NewCompetitorServer starts a fake competitor search site and registers cleanup.
func NewCompetitorServer(t *testing.T, items map[string][]CompetitorItem) *CompetitorServer {
	t.Helper()
	s := &CompetitorServer{
		items:    items,
		failures: map[string]int{},
		hits:     map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailNext makes the next n searches for jan answer 503.
func (s *CompetitorServer) FailNext(jan string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[jan] = n
}

// Hits returns how many searches were served for jan, failures included.
func (s *CompetitorServer) Hits(jan string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[jan]
}

func (s *CompetitorServer) handle(w http.ResponseWriter, r *http.Request) {
	const prefix = "/search/keyword/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	jan := strings.TrimPrefix(r.URL.Path, prefix)

	s.mu.Lock()
	s.hits[jan]++
	if s.failures[jan] > 0 {
		s.failures[jan]--
		s.mu.Unlock()
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	items := s.items[jan]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(CompetitorSearchPage(items)))
}

// CompetitorSearchPage renders a search result page with the given tiles.
func CompetitorSearchPage(items []CompetitorItem) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><title>検索結果</title></head><body><div class="productList">`)
	if len(items) == 0 {
		b.WriteString(`<p class="search__noResult">該当する商品が見つかりませんでした。</p>`)
	}
	for _, it := range items {
		b.WriteString(`<div class="productItem">`)
		fmt.Fprintf(&b, `<a class="productItem__link" href="%s"><p class="productItem__title">商品</p></a>`, it.Path)
		fmt.Fprintf(&b, `<p class="productItem__price">%s<span>(税込)</span></p>`, it.PriceText)
		if it.OutOfStock {
			b.WriteString(`<p class="productItem__stock productItem__stock--alert">在庫なし</p>`)
		} else {
			b.WriteString(`<p class="productItem__stock">在庫あり</p>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// MarketplaceSearchPage renders a marketplace search page with one
// .s-asin tile per ASIN. An empty ASIN renders a tile with an empty attribute.
func MarketplaceSearchPage(asins ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="s-main-slot">`)
	for _, a := range asins {
		fmt.Fprintf(&b, `<div class="s-result-item s-asin" data-asin="%s"><h2>item</h2></div>`, a)
	}
	b.WriteString(`<div class="s-result-item" data-asin="">ad</div></div></body></html>`)
	return b.String()
}
