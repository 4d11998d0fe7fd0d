package model

// Candidate is a marketplace identifier (ASIN) awaiting catalog resolution.
type Candidate string

// DefaultFlagThreshold is the discount percentage at which a record is flagged.
const DefaultFlagThreshold = 35

// Minimal product representation we need for matching against the competitor.
type ResolvedProduct struct {
	ASIN           string
	StableCode     string // JAN, empty when the catalog has no identifier
	CategoryLabel  string
	Rank           string
	ReferencePrice int
}

type StockStatus int

const (
	InStock StockStatus = iota
	OutOfStock
)

// Label is the ledger/export representation of the stock status.
func (s StockStatus) Label() string {
	if s == OutOfStock {
		return "在庫なし"
	}
	return ""
}

// ParseStockStatus is the inverse of Label.
func ParseStockStatus(label string) StockStatus {
	if label == "在庫なし" {
		return OutOfStock
	}
	return InStock
}

type CompetitorListing struct {
	StableCode string
	URL        string
	Stock      StockStatus
	SitePrice  int
}

type Flag int

const (
	FlagNone Flag = iota
	FlagFlagged
)

// Label is the ledger/export representation of the flag.
func (f Flag) Label() string {
	if f == FlagFlagged {
		return "T"
	}
	return ""
}

func ParseFlag(label string) Flag {
	if label == "T" {
		return FlagFlagged
	}
	return FlagNone
}

type ReconciliationRecord struct {
	SequenceID     int
	StableCode     string
	URL            string
	Stock          StockStatus
	SitePrice      int
	ReferencePrice int
	Flag           Flag
}

// DiscountPercent is how far the site price sits below the reference price.
func (r ReconciliationRecord) DiscountPercent() float64 {
	if r.ReferencePrice <= 0 {
		return 0
	}
	return (1 - float64(r.SitePrice)/float64(r.ReferencePrice)) * 100
}

// Reconcile builds the ledger record for a product and its competitor listing.
// The second result is false when the competitor is not cheaper.
func Reconcile(seq int, product ResolvedProduct, listing CompetitorListing, thresholdPercent int) (ReconciliationRecord, bool) {
	if product.ReferencePrice <= listing.SitePrice {
		return ReconciliationRecord{}, false
	}

	rec := ReconciliationRecord{
		SequenceID:     seq,
		StableCode:     product.StableCode,
		URL:            listing.URL,
		Stock:          listing.Stock,
		SitePrice:      listing.SitePrice,
		ReferencePrice: product.ReferencePrice,
	}
	if IsFlagged(product.ReferencePrice, listing.SitePrice, thresholdPercent) {
		rec.Flag = FlagFlagged
	}
	return rec, true
}

// IsFlagged reports whether (1 - site/reference) * 100 >= threshold.
// Integer arithmetic keeps the boundary exact.
func IsFlagged(reference, site, thresholdPercent int) bool {
	if reference <= 0 {
		return false
	}
	return int64(site)*100 <= int64(reference)*int64(100-thresholdPercent)
}
