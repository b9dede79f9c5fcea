package yelp

// PageSchema describes where the search results live inside a search page.
// The upstream page format drifts, so every field here is data rather than
// code; override ComponentsPath from config when the nesting changes.
type PageSchema struct {
	ScriptSelector string
	AssignMarker   string
	ComponentsPath []string
	ListingKey     string
	PropsKey       string
	TotalKey       string
	ProfileBaseURL string
}

func DefaultSchema() PageSchema {
	return PageSchema{
		ScriptSelector: `script[data-id="react-root-props"]`,
		AssignMarker:   "react_root_props = ",
		ComponentsPath: []string{"legacyProps", "searchAppProps", "searchPageProps", "mainContentComponentsListProps"},
		ListingKey:     "bizId",
		PropsKey:       "props",
		TotalKey:       "totalResults",
		ProfileBaseURL: "https://www.yelp.ca/biz/",
	}
}
