package crawler

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/guarzo/janprice/internal/config"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/testutil"
)

type fakeBrowser struct {
	pages map[string]string
	err   error
	urls  []string
}

func (f *fakeBrowser) Render(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	return f.pages[url], nil
}

func TestParseCandidates(t *testing.T) {
	html := testutil.MarketplaceSearchPage("B000000001", "", "B000000002", " B000000003 ")
	got, err := ParseCandidates(html)
	if err != nil {
		t.Fatalf("ParseCandidates: %v", err)
	}
	want := []model.Candidate{"B000000001", "B000000002", "B000000003"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseCandidatesNoTiles(t *testing.T) {
	got, err := ParseCandidates("<html><body>robot check</body></html>")
	if err != nil {
		t.Fatalf("ParseCandidates: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestPageURL(t *testing.T) {
	c := New(&fakeBrowser{}, nil, nil, nil)

	tests := []struct {
		position int
		page     int
		segment  string
		contains string
		absent   string
	}{
		{0, 1, "dvd", "i=dvd", "&page="},
		{149999, 2, "dvd", "salesrank&page=2", ""},
		{150000, 1, "music", "n%3A561956", "&page="},
		{299999, 7, "music", "&page=7", ""},
		{300000, 3, "software", "i=software", ""},
		{350000, 1, "software", "i=software", ""},
	}

	for _, tt := range tests {
		url, seg := c.PageURL(tt.position, tt.page)
		if seg.Name != tt.segment {
			t.Errorf("PageURL(%d) segment = %s, want %s", tt.position, seg.Name, tt.segment)
		}
		if !strings.Contains(url, tt.contains) {
			t.Errorf("PageURL(%d, %d) = %s, want it to contain %s", tt.position, tt.page, url, tt.contains)
		}
		if tt.absent != "" && strings.Contains(url, tt.absent) {
			t.Errorf("PageURL(%d, %d) = %s, should not contain %s", tt.position, tt.page, url, tt.absent)
		}
	}
}

func TestFetchPageCandidates(t *testing.T) {
	c := New(nil, nil, nil, nil)
	url, _ := c.PageURL(150001, 4)

	browser := &fakeBrowser{pages: map[string]string{
		url: testutil.MarketplaceSearchPage("B0000000AA", "B0000000BB"),
	}}
	c = New(browser, nil, nil, nil)

	got := c.FetchPageCandidates(context.Background(), 150001, 4)
	if len(got) != 2 || got[0] != "B0000000AA" || got[1] != "B0000000BB" {
		t.Errorf("got %v", got)
	}
	if len(browser.urls) != 1 || browser.urls[0] != url {
		t.Errorf("rendered %v, want %s", browser.urls, url)
	}
}

func TestFetchPageCandidatesRenderError(t *testing.T) {
	c := New(&fakeBrowser{err: errors.New("net::ERR_TIMED_OUT")}, nil, nil, nil)
	if got := c.FetchPageCandidates(context.Background(), 0, 1); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestFetchPageCandidatesCustomSegments(t *testing.T) {
	segs := []config.Segment{{Name: "books", Start: 0, End: 10, URLTemplate: "http://example.test/s?x=1{page}"}}
	browser := &fakeBrowser{pages: map[string]string{
		"http://example.test/s?x=1&page=2": testutil.MarketplaceSearchPage("B000000042"),
	}}
	c := New(browser, segs, nil, nil)

	got := c.FetchPageCandidates(context.Background(), 3, 2)
	if len(got) != 1 || got[0] != "B000000042" {
		t.Errorf("got %v", got)
	}
}

func TestChromeBrowser(t *testing.T) {
	if !testutil.BrowserTestsEnabled() {
		t.Skip("set TEST_BROWSER=1 to run Chrome tests")
	}

	ctx := context.Background()
	b, err := NewChromeBrowser(ctx, 100*time.Millisecond, 30*time.Second, nil)
	if err != nil {
		t.Fatalf("NewChromeBrowser: %v", err)
	}
	defer b.Close()

	html, err := b.Render(ctx, "data:text/html,"+url.PathEscape(testutil.MarketplaceSearchPage("B000000001")))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got, _ := ParseCandidates(html)
	if len(got) != 1 || got[0] != "B000000001" {
		t.Errorf("got %v", got)
	}
}
