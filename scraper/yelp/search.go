package yelp

import (
	"net/url"
	"strconv"
	"strings"
)

// SearchURL builds the search page address for one results offset.
// Spaces encode as %20, never "+", and "/" is left as is.
func SearchURL(base, query, location string, offset int) string {
	return strings.TrimRight(base, "/") +
		"/search?find_desc=" + quote(query) +
		"&find_loc=" + quote(location) +
		"&start=" + strconv.Itoa(offset)
}

func quote(s string) string {
	return strings.NewReplacer("+", "%20", "%2F", "/").Replace(url.QueryEscape(s))
}
