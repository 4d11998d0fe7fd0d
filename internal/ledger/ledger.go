// Package ledger persists reconciliation records for the current run. The
// table is dropped and recreated at the start of every run.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/model"
)

const tableName = "history"

// Ledger is the durable store behind display and export.
type Ledger interface {
	// Reset discards the previous run's rows.
	Reset(ctx context.Context) error
	// Append inserts one record keyed by its SequenceID.
	Append(ctx context.Context, rec model.ReconciliationRecord) error
	// ExportAll returns every record in insertion order.
	ExportAll(ctx context.Context) ([]model.ReconciliationRecord, error)
	Close() error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs
// use Postgres, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn, logger)
	}
	return OpenSQLite(dsn, logger)
}

// row is the text form of a record as stored in the table.
type row struct {
	id          int
	jan         string
	url         string
	stock       string
	sitePrice   string
	amazonPrice string
	priceStatus string
}

func toRow(rec model.ReconciliationRecord) row {
	return row{
		id:          rec.SequenceID,
		jan:         rec.StableCode,
		url:         rec.URL,
		stock:       rec.Stock.Label(),
		sitePrice:   strconv.Itoa(rec.SitePrice),
		amazonPrice: strconv.Itoa(rec.ReferencePrice),
		priceStatus: rec.Flag.Label(),
	}
}

func (r row) record() (model.ReconciliationRecord, error) {
	site, err := strconv.Atoi(r.sitePrice)
	if err != nil {
		return model.ReconciliationRecord{}, fmt.Errorf("row %d: site_price %q: %w", r.id, r.sitePrice, err)
	}
	ref, err := strconv.Atoi(r.amazonPrice)
	if err != nil {
		return model.ReconciliationRecord{}, fmt.Errorf("row %d: amazon_price %q: %w", r.id, r.amazonPrice, err)
	}
	return model.ReconciliationRecord{
		SequenceID:     r.id,
		StableCode:     r.jan,
		URL:            r.url,
		Stock:          model.ParseStockStatus(r.stock),
		SitePrice:      site,
		ReferencePrice: ref,
		Flag:           model.ParseFlag(r.priceStatus),
	}, nil
}

func persistenceError(op string, err error) error {
	return faults.WithMessage(faults.Persistence, op, "データベースへの書き込みに失敗しました。", err)
}
