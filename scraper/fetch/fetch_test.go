package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"yelp-scraper/utils"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	utils.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestScrapflyFetcherSendsQuery(t *testing.T) {
	target := "https://www.yelp.ca/search?find_desc=coffee&find_loc=Toronto&start=10"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scrape", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "secret", q.Get("key"))
		require.Equal(t, target, q.Get("url"))
		require.Equal(t, "true", q.Get("asp"))
		require.Equal(t, "player,project:default", q.Get("tags"))

		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"content": "<html>ok</html>", "status_code": 200, "success": true},
		})
	}))
	defer srv.Close()

	f, err := NewScrapflyFetcher(ScrapflyOptions{
		APIURL: srv.URL,
		APIKey: "secret",
		Tags:   []string{"player", "project:default"},
	})
	require.NoError(t, err)

	html, err := f.Fetch(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", html)
}

func TestScrapflyFetcherRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"content": "<html/>", "status_code": 200}})
	}))
	defer srv.Close()

	f, err := NewScrapflyFetcher(ScrapflyOptions{APIURL: srv.URL, APIKey: "k", MaxRetries: 3, Backoff: time.Millisecond})
	require.NoError(t, err)

	html, err := f.Fetch(context.Background(), "https://www.yelp.ca/search")
	require.NoError(t, err)
	require.Equal(t, "<html/>", html)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestScrapflyFetcherAuthFailureIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid key"})
	}))
	defer srv.Close()

	f, err := NewScrapflyFetcher(ScrapflyOptions{APIURL: srv.URL, APIKey: "bad", MaxRetries: 3, Backoff: time.Millisecond})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "https://www.yelp.ca/search")
	require.ErrorIs(t, err, utils.ErrPermanent)
	require.Contains(t, err.Error(), "invalid key")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestScrapflyFetcherTargetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"content": "denied", "status_code": 403}})
	}))
	defer srv.Close()

	f, err := NewScrapflyFetcher(ScrapflyOptions{APIURL: srv.URL, APIKey: "k", MaxRetries: 1})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "https://www.yelp.ca/search")
	require.ErrorContains(t, err, "status 403")
}

func TestNewScrapflyFetcherRequiresKey(t *testing.T) {
	_, err := NewScrapflyFetcher(ScrapflyOptions{})
	require.Error(t, err)
}

func TestDirectFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>direct</html>"))
	}))
	defer srv.Close()

	f := NewDirectFetcher(DirectOptions{UserAgent: "test-agent", MaxRetries: 3, Backoff: time.Millisecond})

	html, err := f.Fetch(context.Background(), srv.URL+"/search")
	require.NoError(t, err)
	require.Equal(t, "<html>direct</html>", html)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.ErrorIs(t, err, utils.ErrPermanent)
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<html>fixture</html>"), 0o644))

	html, err := NewFileFetcher(path).Fetch(context.Background(), "https://www.yelp.ca/search")
	require.NoError(t, err)
	require.Equal(t, "<html>fixture</html>", html)

	_, err = NewFileFetcher(filepath.Join(t.TempDir(), "nope.html")).Fetch(context.Background(), "x")
	require.ErrorIs(t, err, os.ErrNotExist)
}
