package yelp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"yelp-scraper/models"
	"yelp-scraper/utils"

	"github.com/PuerkitoBio/goquery"
)

// Extractor turns one search page into listings and the reported total.
type Extractor struct {
	schema PageSchema
}

func NewExtractor(schema PageSchema) *Extractor {
	return &Extractor{schema: schema}
}

// Extract parses the embedded page state of a search page.
//
// Page-level problems (missing script, bad JSON, path drift, no total) fail
// the whole call. Problems inside a single listing never do: the affected
// field is left empty and a warning is logged.
func (e *Extractor) Extract(html string) (models.ExtractionResult, error) {
	script, err := e.rootScript(html)
	if err != nil {
		return models.ExtractionResult{}, err
	}

	literal, err := e.embeddedLiteral(script)
	if err != nil {
		return models.ExtractionResult{}, err
	}

	components, err := e.components(literal)
	if err != nil {
		return models.ExtractionResult{}, err
	}

	var (
		listings []models.Listing
		total    int
		hasTotal bool
	)
	for i, raw := range components {
		switch c := e.classify(raw).(type) {
		case listingCard:
			l, ok := e.project(c.raw)
			if !ok {
				utils.Warn("Component %d: listing card without a business id, skipped", i)
				continue
			}
			listings = append(listings, l)
		case totalsCard:
			total = c.total
			hasTotal = true
		}
	}

	if !hasTotal {
		return models.ExtractionResult{}, ErrMissingTotal
	}

	return models.ExtractionResult{Listings: listings, TotalResults: total}, nil
}

func (e *Extractor) rootScript(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", ErrMarkerNotFound, err)
	}

	sel := doc.Find(e.schema.ScriptSelector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: no element matches %s", ErrMarkerNotFound, e.schema.ScriptSelector)
	}
	if sel.Length() > 1 {
		utils.Debug("%d elements match %s, using the first", sel.Length(), e.schema.ScriptSelector)
	}
	return sel.First().Text(), nil
}

// embeddedLiteral pulls the JSON literal out of "<ident> = <json>;". The
// decoder stops at the end of the first value, so statements after the
// terminator are ignored.
func (e *Extractor) embeddedLiteral(script string) (json.RawMessage, error) {
	idx := strings.Index(script, e.schema.AssignMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: assignment marker %q missing", ErrMarkerNotFound, e.schema.AssignMarker)
	}
	body := script[idx+len(e.schema.AssignMarker):]

	r := strings.NewReader(body)
	dec := json.NewDecoder(r)
	var literal json.RawMessage
	if err := dec.Decode(&literal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbed, err)
	}

	rest, err := io.ReadAll(io.MultiReader(dec.Buffered(), r))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbed, err)
	}
	rest = bytes.TrimSpace(rest)
	if len(rest) > 0 && rest[0] != ';' {
		return nil, fmt.Errorf("%w: unexpected %q after literal", ErrMalformedEmbed, truncate(string(rest), 20))
	}
	return literal, nil
}

func (e *Extractor) components(literal json.RawMessage) ([]json.RawMessage, error) {
	path := e.schema.ComponentsPath
	node := literal
	for i, step := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(node, &obj); err != nil || obj == nil {
			return nil, &PathError{Path: path, Step: i, Msg: "parent is not an object"}
		}
		next, ok := obj[step]
		if !ok {
			return nil, &PathError{Path: path, Step: i, Msg: "field missing"}
		}
		node = next
	}

	var list []json.RawMessage
	if err := json.Unmarshal(node, &list); err != nil {
		return nil, &PathError{Path: path, Step: len(path) - 1, Msg: "value is not an array"}
	}
	return list, nil
}

type card interface {
	isCard()
}

type listingCard struct {
	raw json.RawMessage
}

type totalsCard struct {
	total int
}

func (listingCard) isCard() {}
func (totalsCard) isCard()  {}

// classify decides a component's kind once, by field presence. Components
// that are neither kind return nil.
func (e *Extractor) classify(raw json.RawMessage) card {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil
	}

	if _, ok := obj[e.schema.ListingKey]; ok {
		return listingCard{raw: raw}
	}

	propsRaw, ok := obj[e.schema.PropsKey]
	if !ok {
		return nil
	}
	var props map[string]json.RawMessage
	if err := json.Unmarshal(propsRaw, &props); err != nil {
		return nil
	}
	totalRaw, ok := props[e.schema.TotalKey]
	if !ok {
		return nil
	}
	total, err := parseCount(totalRaw)
	if err != nil {
		utils.Warn("Ignoring %s %s: %v", e.schema.TotalKey, truncate(string(totalRaw), 20), err)
		return nil
	}
	return totalsCard{total: total}
}

func parseCount(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, errors.New("not a non-negative integer")
	}
	return int(f), nil
}

type rawListing struct {
	BizID                string       `json:"bizId"`
	SearchResultBusiness *rawBusiness `json:"searchResultBusiness"`
}

type rawBusiness struct {
	Name        *string       `json:"name"`
	Categories  []rawCategory `json:"categories"`
	Phone       *string       `json:"phone"`
	Website     *rawWebsite   `json:"website"`
	Rating      *float64      `json:"rating"`
	ReviewCount *float64      `json:"reviewCount"`
	Alias       *string       `json:"alias"`
}

type rawCategory struct {
	Title *string `json:"title"`
}

type rawWebsite struct {
	Href *string `json:"href"`
}

// project flattens a listing card. It reports false only when the card has
// no usable business id.
func (e *Extractor) project(raw json.RawMessage) (models.Listing, bool) {
	var rl rawListing
	if err := json.Unmarshal(raw, &rl); err != nil {
		// A type mismatch deep in the card still leaves the id readable.
		var idOnly struct {
			BizID string `json:"bizId"`
		}
		if json.Unmarshal(raw, &idOnly) != nil || idOnly.BizID == "" {
			return models.Listing{}, false
		}
		utils.Warn("Listing %s: undecodable fields, storing id only: %v", idOnly.BizID, err)
		return models.Listing{BizID: idOnly.BizID, Categories: []string{}}, true
	}
	if rl.BizID == "" {
		return models.Listing{}, false
	}

	l := models.Listing{BizID: rl.BizID, Categories: []string{}}
	biz := rl.SearchResultBusiness
	if biz == nil {
		utils.Warn("Listing %s: no searchResultBusiness, storing id only", rl.BizID)
		return l, true
	}

	var missing []string
	if biz.Name != nil {
		l.Name = *biz.Name
	} else {
		missing = append(missing, "name")
	}

	for _, c := range biz.Categories {
		if c.Title == nil {
			missing = append(missing, "categories.title")
			l.Categories = append(l.Categories, "")
			continue
		}
		l.Categories = append(l.Categories, *c.Title)
	}

	if biz.Phone != nil {
		l.Phone = *biz.Phone
	}

	if biz.Website != nil && biz.Website.Href != nil && *biz.Website.Href != "" {
		dest, err := Resolve(*biz.Website.Href)
		if err != nil {
			utils.Warn("Listing %s: website dropped: %v", rl.BizID, err)
		} else {
			display := DisplayForm(dest)
			l.WebsiteURL = &dest
			l.Website = &display
		}
	}

	l.Rating = biz.Rating
	if biz.ReviewCount != nil {
		n := int(*biz.ReviewCount)
		l.ReviewCount = &n
	}

	if biz.Alias != nil && *biz.Alias != "" {
		l.ProfileURL = e.schema.ProfileBaseURL + *biz.Alias
	} else {
		missing = append(missing, "alias")
	}

	if len(missing) > 0 {
		utils.Debug("Listing %s: missing %s", rl.BizID, strings.Join(missing, ", "))
	}
	return l, true
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
