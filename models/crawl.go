package models

// CrawlPhase is the position of a crawl in its state machine.
type CrawlPhase int

const (
	PhaseStart CrawlPhase = iota
	PhaseFetchingPage
	PhaseHaveTotal
	PhaseDone
	PhaseFailed
)

func (p CrawlPhase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseFetchingPage:
		return "fetching"
	case PhaseHaveTotal:
		return "have-total"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// CrawlState tracks one search crawl. TotalResults is meaningful only once
// HasTotal is set by the first successfully extracted page.
type CrawlState struct {
	RunID        string
	Query        string
	Location     string
	Offset       int
	TotalResults int
	HasTotal     bool
	Phase        CrawlPhase
	PagesFetched int
	ListingsSeen int
}

// IsDone reports whether the crawl finished without error.
func (s CrawlState) IsDone() bool {
	return s.Phase == PhaseDone
}
