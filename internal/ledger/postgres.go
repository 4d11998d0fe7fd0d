package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/model"
)

// Postgres stores the ledger in a shared database so several machines can
// read the latest run.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres establishes a connection pool and verifies it.
func OpenPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Reset(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DROP TABLE IF EXISTS ` + tableName)
	batch.Queue(`CREATE TABLE ` + tableName + ` (
		id INTEGER PRIMARY KEY,
		jan TEXT,
		url TEXT,
		stock TEXT,
		site_price TEXT,
		amazon_price TEXT,
		price_status TEXT
	)`)
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return persistenceError("reset", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, rec model.ReconciliationRecord) error {
	r := toRow(rec)
	_, err := p.pool.Exec(ctx,
		`INSERT INTO `+tableName+` (id, jan, url, stock, site_price, amazon_price, price_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.id, r.jan, r.url, r.stock, r.sitePrice, r.amazonPrice, r.priceStatus,
	)
	if err != nil {
		p.logger.Error("ledger: insert failed", zap.Int("id", r.id), zap.String("jan", r.jan), zap.Error(err))
		return persistenceError("append", err)
	}
	return nil
}

func (p *Postgres) ExportAll(ctx context.Context) ([]model.ReconciliationRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, jan, url, stock, site_price, amazon_price, price_status FROM `+tableName+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []model.ReconciliationRecord
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.jan, &r.url, &r.stock, &r.sitePrice, &r.amazonPrice, &r.priceStatus); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
