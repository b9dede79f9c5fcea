package models

// Listing is one business search result, flattened for storage.
//
// Website holds the cosmetic form written to the CSV (no scheme, no "www.").
// WebsiteURL is the resolved destination and is only kept by the SQL stores.
// Both are nil when the listing has no website or its redirect wrapper could
// not be resolved.
type Listing struct {
	BizID       string
	Name        string
	Categories  []string
	Phone       string
	Website     *string
	WebsiteURL  *string
	Rating      *float64
	ReviewCount *int
	ProfileURL  string
}

type ExtractionResult struct {
	Listings     []Listing
	TotalResults int
}
