package api

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	DestPath string `json:"dest_path"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// UnresolvedRef is one reference whose target was absent from the export.
type UnresolvedRef struct {
	SourceID string `json:"source_id"`
	Target   string `json:"target"`
	Label    string `json:"label"`
}

// UnresolvedResponse wraps the unresolved-reference report.
type UnresolvedResponse struct {
	References []UnresolvedRef `json:"references"`
}
