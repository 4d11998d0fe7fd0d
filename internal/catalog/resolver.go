// Package catalog resolves candidate ASINs to JAN codes and reference prices.
package catalog

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/spapi"
)

// MaxBatch is the largest identifier list the catalog endpoint accepts.
const MaxBatch = 20

// ErrEmptyBatch is returned when the catalog answered with no items.
var ErrEmptyBatch = errors.New("catalog returned no items")

// API is the part of the Selling Partner client the resolver needs.
type API interface {
	SearchCatalogItems(ctx context.Context, token string, asins []string) ([]spapi.CatalogItem, error)
	CompetitivePrices(ctx context.Context, token string, asins []string) (map[string]int, error)
}

type Resolver struct {
	api    API
	logger *zap.Logger
}

func NewResolver(api API, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve looks up a batch of candidates. The reference price is the list
// price when present, else the competitive price, fetched at most once per
// batch. Products with neither are dropped. A failed or empty lookup returns
// a faults.Resolution error and the batch should be skipped.
func (r *Resolver) Resolve(ctx context.Context, token string, batch []model.Candidate) ([]model.ResolvedProduct, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if len(batch) > MaxBatch {
		batch = batch[:MaxBatch]
	}

	asins := make([]string, len(batch))
	for i, c := range batch {
		asins[i] = string(c)
	}

	items, err := r.api.SearchCatalogItems(ctx, token, asins)
	if err != nil {
		r.logger.Warn("catalog: lookup failed", zap.Int("batch", len(asins)), zap.Error(err))
		return nil, faults.WithMessage(faults.Resolution, "catalog lookup", "カタログ情報を取得できませんでした。", err)
	}
	if len(items) == 0 {
		return nil, faults.WithMessage(faults.Resolution, "catalog lookup", "カタログ情報を取得できませんでした。", ErrEmptyBatch)
	}

	var competitive map[string]int
	competitiveLoaded := false

	products := make([]model.ResolvedProduct, 0, len(items))
	for _, it := range items {
		p := model.ResolvedProduct{
			ASIN:           it.ASIN,
			StableCode:     stableCode(it),
			ReferencePrice: it.ListPrice(),
		}
		p.CategoryLabel, p.Rank = salesRank(it)

		if p.ReferencePrice == 0 {
			if !competitiveLoaded {
				competitiveLoaded = true
				competitive, err = r.api.CompetitivePrices(ctx, token, asins)
				if err != nil {
					r.logger.Warn("catalog: competitive price lookup failed", zap.Error(err))
				}
			}
			p.ReferencePrice = competitive[it.ASIN]
		}
		if p.ReferencePrice == 0 {
			r.logger.Debug("catalog: no reference price", zap.String("asin", it.ASIN))
			continue
		}
		products = append(products, p)
	}

	r.logger.Debug("catalog: batch resolved",
		zap.Int("requested", len(asins)),
		zap.Int("items", len(items)),
		zap.Int("priced", len(products)))
	return products, nil
}

func stableCode(it spapi.CatalogItem) string {
	for _, group := range it.Identifiers {
		for _, id := range group.Identifiers {
			if id.Identifier != "" {
				return id.Identifier
			}
		}
	}
	return ""
}

func salesRank(it spapi.CatalogItem) (label, rank string) {
	for _, sr := range it.SalesRanks {
		if len(sr.DisplayGroupRanks) > 0 {
			g := sr.DisplayGroupRanks[0]
			return g.Title, strconv.Itoa(g.Rank)
		}
	}
	return "", ""
}
