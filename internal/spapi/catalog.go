package spapi

import (
	"context"
	"math"
	"net/url"
	"strings"
)

const (
	catalogItemsPath     = "/catalog/2022-04-01/items"
	competitivePricePath = "/products/pricing/v0/competitivePrice"
)

// CatalogItem is the subset of a catalog item we read.
type CatalogItem struct {
	ASIN       string `json:"asin"`
	Attributes struct {
		ListPrice []struct {
			Value    float64 `json:"value"`
			Currency string  `json:"currency"`
		} `json:"list_price"`
	} `json:"attributes"`
	Identifiers []struct {
		MarketplaceID string `json:"marketplaceId"`
		Identifiers   []struct {
			IdentifierType string `json:"identifierType"`
			Identifier     string `json:"identifier"`
		} `json:"identifiers"`
	} `json:"identifiers"`
	SalesRanks []struct {
		MarketplaceID     string `json:"marketplaceId"`
		DisplayGroupRanks []struct {
			WebsiteDisplayGroup string `json:"websiteDisplayGroup"`
			Title               string `json:"title"`
			Rank                int    `json:"rank"`
		} `json:"displayGroupRanks"`
	} `json:"salesRanks"`
}

// ListPrice returns the first list price rounded to whole yen, or 0.
func (it CatalogItem) ListPrice() int {
	if len(it.Attributes.ListPrice) == 0 {
		return 0
	}
	return int(math.Round(it.Attributes.ListPrice[0].Value))
}

// SearchCatalogItems looks up ASINs with identifiers, attributes and sales ranks.
func (c *Client) SearchCatalogItems(ctx context.Context, token string, asins []string) ([]CatalogItem, error) {
	var out struct {
		NumberOfResults int           `json:"numberOfResults"`
		Items           []CatalogItem `json:"items"`
	}

	q := url.Values{}
	q.Set("marketplaceIds", c.marketplaceID)
	if c.sellerID != "" {
		q.Set("sellerId", c.sellerID)
	}
	q.Set("includedData", "identifiers,attributes,salesRanks")
	q.Set("identifiersType", "ASIN")
	q.Set("identifiers", strings.Join(asins, ","))

	if err := c.getJSON(ctx, c.limits.Catalog, token, catalogItemsPath, q, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CompetitivePrices returns the lowest competitive listing price per ASIN.
// ASINs without a competitive price are absent from the map.
func (c *Client) CompetitivePrices(ctx context.Context, token string, asins []string) (map[string]int, error) {
	var out struct {
		Payload []struct {
			ASIN    string `json:"ASIN"`
			Status  string `json:"status"`
			Product struct {
				CompetitivePricing struct {
					CompetitivePrices []struct {
						CompetitivePriceID string `json:"CompetitivePriceId"`
						Price              struct {
							ListingPrice struct {
								CurrencyCode string  `json:"CurrencyCode"`
								Amount       float64 `json:"Amount"`
							} `json:"ListingPrice"`
						} `json:"Price"`
					} `json:"CompetitivePrices"`
				} `json:"CompetitivePricing"`
			} `json:"Product"`
		} `json:"payload"`
	}

	q := url.Values{}
	q.Set("MarketplaceId", c.marketplaceID)
	q.Set("Asins", strings.Join(asins, ","))
	q.Set("ItemType", "Asin")

	if err := c.getJSON(ctx, c.limits.Pricing, token, competitivePricePath, q, &out); err != nil {
		return nil, err
	}

	prices := make(map[string]int, len(out.Payload))
	for _, p := range out.Payload {
		cp := p.Product.CompetitivePricing.CompetitivePrices
		if len(cp) == 0 {
			continue
		}
		prices[p.ASIN] = int(math.Round(cp[0].Price.ListingPrice.Amount))
	}
	return prices, nil
}
