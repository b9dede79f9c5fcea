package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"yelp-scraper/models"
	"yelp-scraper/utils"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQL alternative to the CSV store with the same
// first-write-wins rule, enforced by INSERT OR IGNORE on the primary key.
type SQLiteStore struct {
	db    *sql.DB
	runID string
	added int
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS yelp_businesses (
	biz_id        TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	categories    TEXT NOT NULL DEFAULT '[]',
	phone         TEXT,
	website       TEXT,
	website_url   TEXT,
	rating        REAL,
	review_count  INTEGER,
	yelp_url      TEXT,
	scrape_run_id TEXT,
	created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);
`

func NewSQLiteStore(path, runID string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, runID: runID}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Added() int {
	return s.added
}

func (s *SQLiteStore) Merge(ctx context.Context, listings []models.Listing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO yelp_businesses
			(biz_id, name, categories, phone, website, website_url, rating, review_count, yelp_url, scrape_run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sqlite insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, l := range listings {
		if l.BizID == "" {
			continue
		}
		categories := l.Categories
		if categories == nil {
			categories = []string{}
		}
		encoded, err := json.Marshal(categories)
		if err != nil {
			return fmt.Errorf("encode categories of %s: %w", l.BizID, err)
		}

		res, err := stmt.ExecContext(ctx,
			l.BizID, l.Name, string(encoded),
			nullIfEmpty(l.Phone), l.Website, l.WebsiteURL,
			l.Rating, l.ReviewCount, nullIfEmpty(l.ProfileURL), s.runID,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", l.BizID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for %s: %w", l.BizID, err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	s.added += added

	utils.Success("Merged %d listings → sqlite (%d new)", len(listings), added)
	return nil
}

// Listings returns the stored rows in insertion order.
func (s *SQLiteStore) Listings(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT biz_id, name, categories, phone, website, website_url, rating, review_count, yelp_url
		FROM yelp_businesses ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite: %w", err)
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		var (
			l          models.Listing
			categories string
			phone      sql.NullString
			website    sql.NullString
			websiteURL sql.NullString
			rating     sql.NullFloat64
			reviews    sql.NullInt64
			yelpURL    sql.NullString
		)
		if err := rows.Scan(&l.BizID, &l.Name, &categories, &phone, &website, &websiteURL, &rating, &reviews, &yelpURL); err != nil {
			return nil, fmt.Errorf("scan sqlite row: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &l.Categories); err != nil {
			return nil, fmt.Errorf("decode categories of %s: %w", l.BizID, err)
		}
		l.Phone = phone.String
		l.ProfileURL = yelpURL.String
		if website.Valid {
			l.Website = &website.String
		}
		if websiteURL.Valid {
			l.WebsiteURL = &websiteURL.String
		}
		if rating.Valid {
			l.Rating = &rating.Float64
		}
		if reviews.Valid {
			n := int(reviews.Int64)
			l.ReviewCount = &n
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
