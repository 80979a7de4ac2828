// SPDX-License-Identifier: MIT

// Package pricedb stores price observations per part, variant and shop in
// SQLite, one row per observation.
package pricedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/eardbi/bike-builds-api/internal/model"
)

const schemaVersion = 1

// PricePoint is one observation of a part listing at a shop. At least one
// of Price, Available, Rating or Discount is set.
type PricePoint struct {
	PartID     model.ID      `json:"part_id"`
	VariantID  model.ID      `json:"variant_id"`
	ShopID     model.ID      `json:"shop_id"`
	ObservedAt time.Time     `json:"observed_at"`
	Price      *model.Price  `json:"price,omitempty"`
	Available  *bool         `json:"available,omitempty"`
	Rating     *model.Rating `json:"rating,omitempty"`
	Discount   *bool         `json:"discount,omitempty"`
}

// PointFromTag converts a price tag into a point for the given listing.
func PointFromTag(partID, variantID, shopID model.ID, at time.Time, tag model.PriceTag) PricePoint {
	return PricePoint{
		PartID:     partID,
		VariantID:  variantID,
		ShopID:     shopID,
		ObservedAt: at,
		Price:      tag.Price,
		Available:  tag.Available,
		Rating:     tag.Rating,
		Discount:   tag.Discount,
	}
}

// Empty reports whether the point carries no observation signals.
func (p PricePoint) Empty() bool {
	return p.Price == nil && p.Available == nil && p.Rating == nil && p.Discount == nil
}

// DB is the SQLite-backed price history store.
type DB struct {
	db *sql.DB
}

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended pool configuration. WAL mode lets
// multiple readers run alongside the single writer.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// Open initializes the price database with mandatory PRAGMAs and runs the
// schema migration.
func Open(dbPath string, cfg Config) (*DB, error) {
	// PRAGMAs go into the DSN so they apply to every connection in the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("pricedb: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pricedb: ping failed: %w", err)
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pricedb: migration failed: %w", err)
	}
	return s, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection. Wired into the readiness probe.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS price_points (
		part_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		shop_id TEXT NOT NULL,
		observed_at_ms INTEGER NOT NULL,
		value REAL,
		currency TEXT,
		available INTEGER,
		rating INTEGER,
		discount INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_price_points_part_time ON price_points(part_id, observed_at_ms);
	CREATE INDEX IF NOT EXISTS idx_price_points_listing ON price_points(part_id, variant_id, shop_id, observed_at_ms);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Insert writes a batch of points in one transaction. Points without any
// observation signal are rejected.
func (s *DB) Insert(ctx context.Context, points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO price_points (
		part_id, variant_id, shop_id, observed_at_ms,
		value, currency, available, rating, discount
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, p := range points {
		if p.Empty() {
			return fmt.Errorf("point %s/%s@%s carries no observation", p.PartID, p.VariantID, p.ShopID)
		}
		var value sql.NullFloat64
		var currency sql.NullString
		if p.Price != nil {
			value = sql.NullFloat64{Float64: p.Price.Value, Valid: true}
			currency = sql.NullString{String: string(p.Price.Currency), Valid: true}
		}
		_, err := tx.ExecContext(ctx, query,
			p.PartID, p.VariantID, p.ShopID, p.ObservedAt.UnixMilli(),
			value, currency, boolToNull(p.Available), ratingToNull(p.Rating), boolToNull(p.Discount),
		)
		if err != nil {
			return fmt.Errorf("insert point %s/%s@%s: %w", p.PartID, p.VariantID, p.ShopID, err)
		}
	}
	return tx.Commit()
}

// History returns all points of a part ordered by observation time. A zero
// since returns the full history. An unknown part yields an empty slice.
func (s *DB) History(ctx context.Context, partID model.ID, since time.Time) ([]PricePoint, error) {
	query := `
	SELECT part_id, variant_id, shop_id, observed_at_ms, value, currency, available, rating, discount
	FROM price_points
	WHERE part_id = ?
	`
	args := []interface{}{partID}
	if !since.IsZero() {
		query += " AND observed_at_ms >= ?"
		args = append(args, since.UnixMilli())
	}
	query += " ORDER BY observed_at_ms, variant_id, shop_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	points := []PricePoint{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Latest returns the newest point per (variant, shop) pair of a part.
// SQLite's bare-column semantics pick the remaining columns from the row
// that held the MAX.
func (s *DB) Latest(ctx context.Context, partID model.ID) ([]PricePoint, error) {
	query := `
	SELECT part_id, variant_id, shop_id, MAX(observed_at_ms) AS observed_at_ms,
	       value, currency, available, rating, discount
	FROM price_points
	WHERE part_id = ?
	GROUP BY variant_id, shop_id
	ORDER BY variant_id, shop_id
	`

	rows, err := s.db.QueryContext(ctx, query, partID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	points := []PricePoint{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func scanPoint(scanner interface {
	Scan(dest ...interface{}) error
}) (PricePoint, error) {
	var p PricePoint
	var observedAt int64
	var value sql.NullFloat64
	var currency sql.NullString
	var available, discount sql.NullBool
	var rating sql.NullInt64

	err := scanner.Scan(
		&p.PartID, &p.VariantID, &p.ShopID, &observedAt,
		&value, &currency, &available, &rating, &discount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan price point: %w", err)
	}

	p.ObservedAt = time.UnixMilli(observedAt).UTC()
	if value.Valid {
		p.Price = &model.Price{Value: value.Float64, Currency: model.Currency(currency.String)}
	}
	if available.Valid {
		v := available.Bool
		p.Available = &v
	}
	if rating.Valid {
		r := model.Rating(rating.Int64)
		p.Rating = &r
	}
	if discount.Valid {
		v := discount.Bool
		p.Discount = &v
	}
	return p, nil
}

func boolToNull(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func ratingToNull(r *model.Rating) sql.NullInt64 {
	if r == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*r), Valid: true}
}
