package services

import (
	"strings"

	"yelp-scraper/models"
	"yelp-scraper/utils"

	"github.com/nyaruka/phonenumbers"
)

const defaultPhoneRegion = "CA"

// Cleaner tidies one page of listings before it reaches a store.
type Cleaner struct {
	// NormalizePhones rewrites parseable phone numbers to E.164. Numbers that
	// do not parse are kept as scraped.
	NormalizePhones bool
	PhoneRegion     string
}

// Clean trims text fields, drops listings without a business id, and keeps
// the first listing for each id within the page.
func (c Cleaner) Clean(listings []models.Listing) []models.Listing {
	seen := make(map[string]bool)
	cleaned := make([]models.Listing, 0, len(listings))

	for _, l := range listings {
		l.BizID = strings.TrimSpace(l.BizID)
		l.Name = strings.TrimSpace(l.Name)
		l.Phone = strings.TrimSpace(l.Phone)
		l.ProfileURL = strings.TrimSpace(l.ProfileURL)

		if l.BizID == "" {
			utils.Warn("Dropping listing %q without a business id", l.Name)
			continue
		}
		if seen[l.BizID] {
			continue
		}
		seen[l.BizID] = true

		if c.NormalizePhones && l.Phone != "" {
			if e164 := normalizePhone(l.Phone, c.PhoneRegion); e164 != "" {
				l.Phone = e164
			}
		}
		cleaned = append(cleaned, l)
	}

	return cleaned
}

func normalizePhone(raw, region string) string {
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
