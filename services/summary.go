package services

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"yelp-scraper/models"

	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintSummary writes the end-of-run report: where the crawl stopped and how
// many new rows each store took.
func PrintSummary(w io.Writer, state models.CrawlState, added map[string]int) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("SCRAPE SUMMARY")

	total := "unknown"
	if state.HasTotal {
		total = strconv.Itoa(state.TotalResults)
	}

	t.AppendRows([]table.Row{
		{"Run", state.RunID},
		{"Query", fmt.Sprintf("%s in %s", state.Query, state.Location)},
		{"Status", state.Phase.String()},
		{"Total results", total},
		{"Pages fetched", state.PagesFetched},
		{"Listings scraped", state.ListingsSeen},
	})
	if !state.IsDone() {
		t.AppendRow(table.Row{"Resume offset", state.Offset})
	}

	names := make([]string, 0, len(added))
	for name := range added {
		names = append(names, name)
	}
	slices.Sort(names)
	if len(names) > 0 {
		t.AppendSeparator()
		for _, name := range names {
			t.AppendRow(table.Row{"New rows → " + name, added[name]})
		}
	}

	t.Render()
}
