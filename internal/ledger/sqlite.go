package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/guarzo/janprice/internal/model"
)

// SQLite is the default ledger, a single local database file.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// one writer; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return &SQLite{db: db, path: path, logger: logger}, nil
}

func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName); err != nil {
		return persistenceError("reset", err)
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE `+tableName+` (
		id INTEGER PRIMARY KEY,
		jan TEXT,
		url TEXT,
		stock TEXT,
		site_price TEXT,
		amazon_price TEXT,
		price_status TEXT
	)`)
	if err != nil {
		return persistenceError("reset", err)
	}
	s.logger.Debug("ledger: table recreated", zap.String("path", s.path))
	return nil
}

func (s *SQLite) Append(ctx context.Context, rec model.ReconciliationRecord) error {
	r := toRow(rec)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+tableName+` (id, jan, url, stock, site_price, amazon_price, price_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.id, r.jan, r.url, r.stock, r.sitePrice, r.amazonPrice, r.priceStatus,
	)
	if err != nil {
		s.logger.Error("ledger: insert failed", zap.Int("id", r.id), zap.String("jan", r.jan), zap.Error(err))
		return persistenceError("append", err)
	}
	return nil
}

func (s *SQLite) ExportAll(ctx context.Context) ([]model.ReconciliationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, jan, url, stock, site_price, amazon_price, price_status FROM `+tableName+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var out []model.ReconciliationRecord
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.jan, &r.url, &r.stock, &r.sitePrice, &r.amazonPrice, &r.priceStatus); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
