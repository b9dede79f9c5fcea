package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yelp-scraper/models"
	"yelp-scraper/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// PostgresStore keeps listings in the yelp_businesses table. The primary key
// on biz_id with ON CONFLICT DO NOTHING gives the same first-write-wins rule
// as the CSV store, and is safe across concurrent runs.
type PostgresStore struct {
	pool  pgxPool
	close func()
	runID uuid.UUID
	added int
}

// NewPostgresStore connects to dsn and verifies the connection. Rows inserted
// through this store are tagged with runID.
func NewPostgresStore(ctx context.Context, dsn string, runID uuid.UUID) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	return &PostgresStore{pool: pool, close: pool.Close, runID: runID}, nil
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func (s *PostgresStore) Added() int {
	return s.added
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS yelp_businesses (
	biz_id        TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	categories    TEXT[] NOT NULL DEFAULT '{}',
	phone         TEXT,
	website       TEXT,
	website_url   TEXT,
	rating        DOUBLE PRECISION,
	review_count  INTEGER,
	yelp_url      TEXT,
	scrape_run_id UUID,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_yelp_businesses_run ON yelp_businesses(scrape_run_id);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const postgresInsert = `
INSERT INTO yelp_businesses (biz_id, name, categories, phone, website, website_url, rating, review_count, yelp_url, scrape_run_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (biz_id) DO NOTHING;
`

// Merge inserts listings in one batch, in order, so that within a batch the
// earlier of two rows sharing a biz_id wins.
func (s *PostgresStore) Merge(ctx context.Context, listings []models.Listing) error {
	batch := &pgx.Batch{}
	for _, l := range listings {
		id := strings.TrimSpace(l.BizID)
		if id == "" {
			continue
		}
		categories := l.Categories
		if categories == nil {
			categories = []string{}
		}
		batch.Queue(postgresInsert,
			id,
			l.Name,
			categories,
			nullIfEmpty(l.Phone),
			l.Website,
			l.WebsiteURL,
			l.Rating,
			l.ReviewCount,
			nullIfEmpty(l.ProfileURL),
			s.runID,
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	added := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch insert failed at row %d: %w", i, err)
		}
		added += int(tag.RowsAffected())
	}
	s.added += added

	utils.Success("Merged %d listings → postgres (%d new)", batch.Len(), added)
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
