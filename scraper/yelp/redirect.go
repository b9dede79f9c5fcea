package yelp

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve unwraps an affiliate redirect link into its real destination.
//
// Wrapped links carry a redirect_url query parameter whose value is itself a
// URL with the destination in its own url parameter. A link without
// redirect_url is returned unchanged. A wrapper whose inner URL has no url
// parameter yields ErrNoInnerURL.
func Resolve(raw string) (string, error) {
	outer, err := url.Parse(raw)
	if err != nil {
		return raw, nil
	}

	redirect := decodeLayer(firstQueryValue(outer.RawQuery, "redirect_url"))
	if redirect == "" {
		return raw, nil
	}

	inner, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrNoInnerURL, redirect, err)
	}

	dest := decodeLayer(firstQueryValue(inner.RawQuery, "url"))
	if dest == "" {
		return "", ErrNoInnerURL
	}
	return dest, nil
}

// DisplayForm strips a leading scheme and "www." for storage.
func DisplayForm(u string) string {
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		u = rest
	} else if rest, ok := strings.CutPrefix(u, "http://"); ok {
		u = rest
	}
	return strings.TrimPrefix(u, "www.")
}

// firstQueryValue returns the first value of key, ignoring malformed pairs
// elsewhere in the query.
func firstQueryValue(rawQuery, key string) string {
	for rawQuery != "" {
		var pair string
		pair, rawQuery, _ = strings.Cut(rawQuery, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(k)
		if err != nil || k != key {
			continue
		}
		v, err = url.QueryUnescape(v)
		if err != nil {
			continue
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// decodeLayer unescapes once more when a value is a URL whose scheme
// separator is still percent-encoded after query parsing, which happens when
// the upstream double-encodes. Other values are left alone.
func decodeLayer(v string) string {
	lower := strings.ToLower(v)
	if !strings.HasPrefix(lower, "http%3a") && !strings.HasPrefix(lower, "https%3a") {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
