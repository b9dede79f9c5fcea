package yelp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func wrapRedirect(dest string) string {
	inner := "https://www.yelp.ca/adredir?ad_business_id=abc&url=" + url.QueryEscape(dest) + "&request_id=1"
	return "https://www.yelp.ca/biz_redir?url=" + url.QueryEscape("https://tracker.example") +
		"&cachebuster=99&redirect_url=" + url.QueryEscape(inner) + "&src_bizid=abc"
}

func TestResolveUnwrapsAffiliateRedirect(t *testing.T) {
	got, err := Resolve(wrapRedirect("https://real.example/page"))
	require.NoError(t, err)
	require.Equal(t, "https://real.example/page", got)
}

func TestResolveKeepsInnerQuery(t *testing.T) {
	got, err := Resolve(wrapRedirect("https://real.example/menu?lang=en&table=2"))
	require.NoError(t, err)
	require.Equal(t, "https://real.example/menu?lang=en&table=2", got)
}

func TestResolveDoubleEncodedDestination(t *testing.T) {
	// The inner url value arrives encoded one extra time.
	inner := "https://site/redir?url=" + url.QueryEscape(url.QueryEscape("https://real.example/page"))
	raw := "https://www.yelp.ca/biz_redir?redirect_url=" + url.QueryEscape(inner)

	got, err := Resolve(raw)
	require.NoError(t, err)
	require.Equal(t, "https://real.example/page", got)
}

func TestResolveKeepsLiteralPercent(t *testing.T) {
	inner := "https://site/redir?url=example.com%2F100%2525off"
	raw := "https://www.yelp.ca/biz_redir?redirect_url=" + url.QueryEscape(inner)

	got, err := Resolve(raw)
	require.NoError(t, err)
	require.Equal(t, "example.com/100%25off", got)
}

func TestResolvePassesThroughPlainLinks(t *testing.T) {
	for _, raw := range []string{
		"https://www.example.com/x",
		"http://cafe.example/?utm_source=yelp",
		"",
		"not a url at all",
	} {
		got, err := Resolve(raw)
		require.NoError(t, err)
		require.Equal(t, raw, got)
	}
}

func TestResolveFirstOccurrenceWins(t *testing.T) {
	first := "https://site/redir?url=" + url.QueryEscape("https://first.example")
	second := "https://site/redir?url=" + url.QueryEscape("https://second.example")
	raw := "https://www.yelp.ca/biz_redir?redirect_url=" + url.QueryEscape(first) +
		"&redirect_url=" + url.QueryEscape(second)

	got, err := Resolve(raw)
	require.NoError(t, err)
	require.Equal(t, "https://first.example", got)
}

func TestResolveMissingInnerURL(t *testing.T) {
	raw := "https://www.yelp.ca/biz_redir?redirect_url=" + url.QueryEscape("https://site/redir?ad=1")

	got, err := Resolve(raw)
	require.ErrorIs(t, err, ErrNoInnerURL)
	require.Empty(t, got)
}

func TestDisplayForm(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/x": "example.com/x",
		"http://www.example.com":    "example.com",
		"https://shop.example.com/": "shop.example.com/",
		"www.example.com":           "example.com",
		"example.com/www.page":      "example.com/www.page",
	}
	for in, want := range cases {
		require.Equal(t, want, DisplayForm(in), in)
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("https://www.yelp.ca/", "coffee & tea", "Toronto, ON", 20)
	require.Equal(t, "https://www.yelp.ca/search?find_desc=coffee%20%26%20tea&find_loc=Toronto%2C%20ON&start=20", got)
}

func TestSearchURLKeepsSlash(t *testing.T) {
	got := SearchURL("https://www.yelp.ca", "bars/pubs", "Kitchener-Waterloo", 0)
	require.Equal(t, "https://www.yelp.ca/search?find_desc=bars/pubs&find_loc=Kitchener-Waterloo&start=0", got)

	got = SearchURL("https://www.yelp.ca", "50%/off", "~home", 10)
	require.Equal(t, "https://www.yelp.ca/search?find_desc=50%25/off&find_loc=~home&start=10", got)
}
