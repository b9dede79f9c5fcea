package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"yelp-scraper/models"
	"yelp-scraper/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	utils.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func strPtr(s string) *string    { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int          { return &n }

func sampleListing(id, name string) models.Listing {
	return models.Listing{
		BizID:       id,
		Name:        name,
		Categories:  []string{"Coffee & Tea", "Joe's Diner"},
		Phone:       "(604) 555-0199",
		Website:     strPtr("example.com"),
		WebsiteURL:  strPtr("https://www.example.com"),
		Rating:      floatPtr(4),
		ReviewCount: intPtr(12),
		ProfileURL:  "https://www.yelp.ca/biz/" + id,
	}
}

func TestCSVStoreMissingFileIsEmpty(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "out.csv"))

	require.False(t, store.Exists())
	rows, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCSVStoreEmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	rows, err := NewCSVStore(path).Load()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCSVStoreMergeWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	store := NewCSVStore(path)

	require.NoError(t, store.Merge(context.Background(), []models.Listing{sampleListing("a", "Alpha")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := strings.Join([]string{
		"bizId,name,categories,phone number,website,rating,reviewCount,yelp_url",
		`a,Alpha,"['Coffee & Tea', ""Joe's Diner""]",(604) 555-0199,example.com,4.0,12,https://www.yelp.ca/biz/a`,
		"",
	}, "\n")
	require.Equal(t, want, string(data))
	require.Equal(t, 1, store.Added())
	require.True(t, store.Exists())
}

func TestCSVStoreFirstWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	store := NewCSVStore(path)
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, []models.Listing{sampleListing("x", "Old")}))
	require.NoError(t, store.Merge(ctx, []models.Listing{sampleListing("x", "New"), sampleListing("y", "Other")}))

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Old", rows[0][1])
	require.Equal(t, "y", rows[1][0])
	require.Equal(t, 2, store.Added())
}

func TestCSVStoreDedupWithinPage(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "out.csv"))

	err := store.Merge(context.Background(), []models.Listing{
		sampleListing("x", "First"),
		sampleListing("x", "Second"),
	})
	require.NoError(t, err)

	rows, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "First", rows[0][1])
}

func TestCSVStoreMergeIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	store := NewCSVStore(path)
	ctx := context.Background()
	page := []models.Listing{sampleListing("a", "Alpha"), sampleListing("b", "Beta")}

	require.NoError(t, store.Merge(ctx, page))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Merge(ctx, page))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, string(first), string(second))
	require.Equal(t, 2, store.Added())
}

func TestCSVStoreKeepsExistingRowsVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	existing := "\ufeffbizId,name,categories,phone number,website,rating,reviewCount,yelp_url\n" +
		"old,Legacy,['Bars'],,,4.5,12.0,https://www.yelp.ca/biz/old\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0644))

	store := NewCSVStore(path)
	require.NoError(t, store.Merge(context.Background(), []models.Listing{sampleListing("old", "Replacement")}))

	rows, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, [][]string{{"old", "Legacy", "['Bars']", "", "", "4.5", "12.0", "https://www.yelp.ca/biz/old"}}, rows)
	require.Equal(t, 0, store.Added())
}

func TestCSVStoreMergeKeepsFileMode(t *testing.T) {
	for _, mode := range []os.FileMode{0644, 0640} {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(Header, ",")+"\n"), 0600))
		require.NoError(t, os.Chmod(path, mode))

		require.NoError(t, NewCSVStore(path).Merge(context.Background(), []models.Listing{{BizID: "a"}}))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, mode, info.Mode().Perm())
	}
}

func TestCSVStoreNewFileIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, NewCSVStore(path).Merge(context.Background(), []models.Listing{{BizID: "a"}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestCSVStoreHeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,a,b,c,d,e,f\n"), 0644))

	store := NewCSVStore(path)
	_, err := store.Load()
	require.Error(t, err)

	err = store.Merge(context.Background(), []models.Listing{sampleListing("a", "Alpha")})
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.Equal(t, "id,name,a,b,c,d,e,f\n", string(data))
}

func TestCSVStoreMergeCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCSVStore(path).Merge(ctx, []models.Listing{sampleListing("a", "Alpha")})
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestListingRowNullables(t *testing.T) {
	row := ListingRow(models.Listing{BizID: "a", Name: "Alpha", ProfileURL: "u"})
	require.Equal(t, []string{"a", "Alpha", "[]", "", "", "", "", "u"}, row)
}

func TestCSVStoreListingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	store := NewCSVStore(path)
	in := sampleListing("a", "Alpha")
	require.NoError(t, store.Merge(context.Background(), []models.Listing{in}))

	got, err := store.Listings()
	require.NoError(t, err)

	want := in
	want.WebsiteURL = nil
	if diff := cmp.Diff([]models.Listing{want}, got); diff != "" {
		t.Fatalf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVStoreListingsFloatReviewCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	data := strings.Join(Header, ",") + "\n" + "a,Alpha,[],,,3.5,12.0,u\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	got, err := NewCSVStore(path).Listings()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 12, *got[0].ReviewCount)
	require.Equal(t, 3.5, *got[0].Rating)
	require.Nil(t, got[0].Website)
	require.Equal(t, []string{}, got[0].Categories)
}

func TestFormatFloat(t *testing.T) {
	require.Equal(t, "4.0", formatFloat(4))
	require.Equal(t, "4.5", formatFloat(4.5))
	require.Equal(t, "0.0", formatFloat(0))
}

func TestCategoriesRoundTrip(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "[]"},
		{[]string{"Bars"}, "['Bars']"},
		{[]string{"Coffee & Tea", "Pizza"}, "['Coffee & Tea', 'Pizza']"},
		{[]string{"Joe's"}, `["Joe's"]`},
		{[]string{`He said "hi" it's`}, `['He said "hi" it\'s']`},
		{[]string{`back\slash`}, `['back\\slash']`},
		{[]string{"Café"}, "['Café']"},
		{[]string{"a\u00a0b"}, `['a\xa0b']`},
		{[]string{"soft\u00adhyphen"}, `['soft\xadhyphen']`},
		{[]string{"zero\u200bwidth"}, `['zero\u200bwidth']`},
	}
	for _, tc := range cases {
		got := FormatCategories(tc.in)
		require.Equal(t, tc.want, got)

		parsed, err := ParseCategories(got)
		require.NoError(t, err)
		if tc.in == nil {
			require.Empty(t, parsed)
			continue
		}
		require.Equal(t, tc.in, parsed)
	}
}

func TestParseCategoriesErrors(t *testing.T) {
	for _, in := range []string{"Bars", "['Bars'", "['Bars' 'Pubs']", "[Bars]", "['unterminated]"} {
		_, err := ParseCategories(in)
		require.Error(t, err, in)
	}
}
