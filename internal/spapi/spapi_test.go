package spapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/ratelimit"
	"github.com/guarzo/janprice/internal/testutil"
)

func newTestClient(srv *testutil.SPAPIServer) *Client {
	return NewClient(ClientConfig{
		BaseURL:       srv.URL,
		MarketplaceID: "A1VC38T7YXB528",
		SellerID:      "SELLER1",
		Limits:        ratelimit.Unlimited(),
	})
}

func TestAccessToken(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{AccessToken: "Atza|abc"})
	creds := Credentials{
		RefreshToken: testutil.GetTestRefreshToken(),
		ClientID:     "client",
		ClientSecret: "secret",
		Scope:        "sellingpartnerapi::migration",
	}
	broker := NewTokenBroker(srv.TokenURL(), creds, ratelimit.Unlimited(), nil)

	token, err := broker.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "Atza|abc" {
		t.Errorf("token = %q, want Atza|abc", token)
	}

	form := srv.TokenForm()
	if form["grant_type"] != "refresh_token" {
		t.Errorf("grant_type = %q", form["grant_type"])
	}
	if form["refresh_token"] != creds.RefreshToken || form["client_id"] != "client" || form["client_secret"] != "secret" {
		t.Errorf("unexpected form: %v", form)
	}
	if form["scope"] != creds.Scope {
		t.Errorf("scope = %q", form["scope"])
	}
}

func TestAccessTokenNotCached(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{AccessToken: "tok"})
	broker := NewTokenBroker(srv.TokenURL(), Credentials{RefreshToken: "r"}, ratelimit.Unlimited(), nil)

	for i := 0; i < 3; i++ {
		if _, err := broker.AccessToken(context.Background()); err != nil {
			t.Fatalf("AccessToken: %v", err)
		}
	}
	if calls, _, _ := srv.Counts(); calls != 3 {
		t.Errorf("token calls = %d, want 3", calls)
	}
}

func TestAccessTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		fixture testutil.SPAPIFixture
		wantErr error
	}{
		{"rejected", testutil.SPAPIFixture{AccessToken: "tok", TokenStatus: http.StatusBadRequest}, nil},
		{"missing token", testutil.SPAPIFixture{}, ErrNoToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewSPAPIServer(t, tt.fixture)
			broker := NewTokenBroker(srv.TokenURL(), Credentials{RefreshToken: "r"}, nil, nil)

			_, err := broker.AccessToken(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !faults.Is(err, faults.Auth) {
				t.Errorf("kind = %v, want auth", faults.KindOf(err))
			}
			if !faults.IsFatal(err) {
				t.Error("auth failures must be fatal")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccessTokenUnreachable(t *testing.T) {
	broker := NewTokenBroker("http://127.0.0.1:1/auth/o2/token", Credentials{}, nil, nil)
	_, err := broker.AccessToken(context.Background())
	if !faults.Is(err, faults.Auth) {
		t.Fatalf("expected auth fault, got %v", err)
	}
}

func TestReports(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{DocumentID: "amzn1.doc.1"})
	c := newTestClient(srv)
	ctx := context.Background()

	id, err := c.LatestReportDocumentID(ctx, "tok", MerchantListingsReport)
	if err != nil {
		t.Fatalf("LatestReportDocumentID: %v", err)
	}
	if id != "amzn1.doc.1" {
		t.Errorf("id = %q", id)
	}

	doc, err := c.ReportDocument(ctx, "tok", id)
	if err != nil {
		t.Fatalf("ReportDocument: %v", err)
	}
	if doc.URL != srv.URL+"/files/report.gz" {
		t.Errorf("url = %q", doc.URL)
	}
	if !doc.Gzipped() {
		t.Error("expected gzipped document")
	}

	if _, err := c.ReportDocument(ctx, "tok", "missing"); err == nil {
		t.Error("expected error for unknown document")
	} else {
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusNotFound {
			t.Errorf("err = %v, want 404 StatusError", err)
		}
	}
}

func TestNoReport(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{})
	_, err := newTestClient(srv).LatestReportDocumentID(context.Background(), "tok", MerchantListingsReport)
	if !errors.Is(err, ErrNoReport) {
		t.Errorf("err = %v, want ErrNoReport", err)
	}
}

func TestMissingAccessToken(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{DocumentID: "d"})
	_, err := newTestClient(srv).LatestReportDocumentID(context.Background(), "", MerchantListingsReport)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Errorf("err = %v, want 403", err)
	}
}

func TestSearchCatalogItems(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{
		Catalog: map[string]testutil.CatalogFixture{
			"B000000001": {JAN: "4988067000125", Category: "DVD", Rank: 120, ListPrice: 2980},
			"B000000002": {Category: "DVD", Rank: 5},
		},
	})
	c := newTestClient(srv)

	items, err := c.SearchCatalogItems(context.Background(), "tok", []string{"B000000001", "B000000002", "B000000003"})
	if err != nil {
		t.Fatalf("SearchCatalogItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if got := srv.Identifiers(); len(got) != 3 || got[0] != "B000000001" {
		t.Errorf("identifiers sent = %v", got)
	}

	first := items[0]
	if first.ASIN != "B000000001" || first.ListPrice() != 2980 {
		t.Errorf("first = %s %d", first.ASIN, first.ListPrice())
	}
	if first.Identifiers[0].Identifiers[0].Identifier != "4988067000125" {
		t.Errorf("identifier = %+v", first.Identifiers)
	}
	if first.SalesRanks[0].DisplayGroupRanks[0].Rank != 120 {
		t.Errorf("rank = %+v", first.SalesRanks)
	}
	if items[1].ListPrice() != 0 {
		t.Errorf("second list price = %d, want 0", items[1].ListPrice())
	}
}

func TestCompetitivePrices(t *testing.T) {
	srv := testutil.NewSPAPIServer(t, testutil.SPAPIFixture{
		Competitive: map[string]float64{"B000000001": 1499.6},
	})
	prices, err := newTestClient(srv).CompetitivePrices(context.Background(), "tok", []string{"B000000001", "B000000002"})
	if err != nil {
		t.Fatalf("CompetitivePrices: %v", err)
	}
	if prices["B000000001"] != 1500 {
		t.Errorf("price = %d, want 1500", prices["B000000001"])
	}
	if _, ok := prices["B000000002"]; ok {
		t.Error("ASIN without competitive price should be absent")
	}
}
