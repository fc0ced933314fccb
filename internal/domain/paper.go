// Package domain defines the entities and error taxonomy shared across the
// PubMed search service.
package domain

// Paper is the normalized record for a single PubMed article, built from the
// esummary response. Field names in JSON follow the tool contract exposed to
// callers. A Paper is immutable once constructed.
type Paper struct {
	// Title is the article title, or "N/A" when the summary omits it.
	Title string `json:"title"`

	// Authors is the formatted author list: contributor entries with the
	// "Author" role joined by commas, optionally truncated to the first
	// five names with an "et al. (N more)" suffix.
	Authors string `json:"authors"`

	// PubDate is the publication date as reported upstream (free-form text).
	PubDate string `json:"pubDate"`

	// PMID is the PubMed identifier. Always present.
	PMID int64 `json:"pmid"`

	// PMC is the PubMed Central identifier for the full-text mirror of the
	// article, when one exists.
	PMC *int64 `json:"pmc,omitempty"`

	// DOI is the persistent document identifier, when one exists.
	DOI string `json:"doi,omitempty"`

	// Journal is the full journal name, falling back to the short source
	// name, or "N/A" when neither is present.
	Journal string `json:"journal,omitempty"`
}

// SearchResult holds one page of search results.
type SearchResult struct {
	// Count is the total number of matches reported upstream, which may
	// exceed the number of papers returned on this page.
	Count int `json:"count"`

	// Papers are the returned records in upstream (relevance) order.
	Papers []Paper `json:"papers"`
}

// BatchSearchItem is one slot of a batch search response. Slots appear in the
// same order as the input queries; a failed query is reported in its slot
// without affecting sibling slots.
type BatchSearchItem struct {
	Query   string        `json:"query"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Data    *SearchResult `json:"data"`
}
