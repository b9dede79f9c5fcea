package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"yelp-scraper/models"
	"yelp-scraper/utils"
)

// Header is the exact column set of the CSV store.
var Header = []string{"bizId", "name", "categories", "phone number", "website", "rating", "reviewCount", "yelp_url"}

// CSVStore keeps listings in one CSV file, deduplicated by bizId with the
// first row ever written winning.
//
// Every Merge rewrites the whole file. There is no file locking: two
// processes merging into the same path race and the last rewrite wins, so
// callers must serialize merges per path.
type CSVStore struct {
	path  string
	added int
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string {
	return s.path
}

// Exists reports whether the store file is already on disk.
func (s *CSVStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Added is the number of rows this store appended since it was created.
func (s *CSVStore) Added() int {
	return s.added
}

// Merge loads the existing rows, appends listings after them, drops every
// row whose bizId was already seen, and rewrites the file.
//
// Existing rows are carried over byte for byte, so merging the same
// listings twice leaves the file unchanged.
func (s *CSVStore) Merge(ctx context.Context, listings []models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := s.Load()
	if err != nil {
		return err
	}

	combined := make([][]string, 0, len(existing)+len(listings))
	combined = append(combined, existing...)
	for _, l := range listings {
		combined = append(combined, ListingRow(l))
	}

	rows := dedupRows(combined)
	if err := s.write(rows); err != nil {
		return err
	}

	added := len(rows) - len(dedupRows(existing))
	s.added += added
	utils.Success("Merged %d listings → %s (%d new, %d rows total)", len(listings), s.path, added, len(rows))
	return nil
}

// Load returns the stored rows without the header. A missing or empty file
// is an empty store.
func (s *CSVStore) Load() ([][]string, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read header of %s: %w", s.path, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("%s has columns %v, want %v", s.path, header, Header)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", s.path, err)
	}
	return rows, nil
}

func (s *CSVStore) write(rows [][]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	mode := os.FileMode(0644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("could not set mode of temp file: %w", err)
	}

	writer := csv.NewWriter(tmp)
	if err := writer.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("csv write error: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("csv write error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("could not replace %s: %w", s.path, err)
	}
	return nil
}

func dedupRows(rows [][]string) [][]string {
	seen := make(map[string]bool, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if seen[row[0]] {
			continue
		}
		seen[row[0]] = true
		out = append(out, row)
	}
	return out
}

// ListingRow renders a listing in Header column order.
func ListingRow(l models.Listing) []string {
	website := ""
	if l.Website != nil {
		website = *l.Website
	}
	rating := ""
	if l.Rating != nil {
		rating = formatFloat(*l.Rating)
	}
	reviews := ""
	if l.ReviewCount != nil {
		reviews = strconv.Itoa(*l.ReviewCount)
	}

	return []string{
		l.BizID,
		l.Name,
		FormatCategories(l.Categories),
		l.Phone,
		website,
		rating,
		reviews,
		l.ProfileURL,
	}
}

// formatFloat always keeps a fractional part: 4 renders as "4.0".
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Listings parses the stored rows back into listings. WebsiteURL is not
// kept in the CSV and stays nil.
func (s *CSVStore) Listings() ([]models.Listing, error) {
	rows, err := s.Load()
	if err != nil {
		return nil, err
	}

	out := make([]models.Listing, 0, len(rows))
	for i, row := range rows {
		l, err := rowListing(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", s.path, i+2, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func rowListing(row []string) (models.Listing, error) {
	categories, err := ParseCategories(row[2])
	if err != nil {
		return models.Listing{}, err
	}

	l := models.Listing{
		BizID:      row[0],
		Name:       row[1],
		Categories: categories,
		Phone:      row[3],
		ProfileURL: row[7],
	}
	if row[4] != "" {
		website := row[4]
		l.Website = &website
	}
	if row[5] != "" {
		rating, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return models.Listing{}, fmt.Errorf("rating %q: %w", row[5], err)
		}
		l.Rating = &rating
	}
	if row[6] != "" {
		// Older pandas-written stores render counts as floats ("12.0").
		count, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return models.Listing{}, fmt.Errorf("reviewCount %q: %w", row[6], err)
		}
		n := int(count)
		l.ReviewCount = &n
	}
	return l, nil
}
