// Package eutils provides a client for the NCBI E-utilities API, covering
// search, summary, link, and fetch operations against PubMed and PubMed
// Central.
package eutils

import "time"

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryDelay is the base delay between retry attempts. The delay
	// doubles on each subsequent attempt.
	DefaultRetryDelay = time.Second

	// MaxAttempts is the total number of attempts for one logical request,
	// including the first.
	MaxAttempts = 3

	// DefaultResultLimit is the page size used when the caller does not
	// specify one.
	DefaultResultLimit = 10
)

// Tier is the rate and result-limit policy selected by credential presence.
// NCBI allows 3 requests per second without an API key and 10 with one, and
// keyed access raises the usable result ceilings. The tier is derived once at
// startup and fixed for the process lifetime.
type Tier struct {
	// RequestsPerSecond is the sustained request rate and the concurrency
	// gate capacity.
	RequestsPerSecond int

	// MaxResults is the maximum results per search page.
	MaxResults int

	// MaxLinkResults is the maximum results when listing citation relations.
	MaxLinkResults int

	// ChunkSize is the number of identifiers fetched per summary call.
	ChunkSize int
}

// TierFor returns the tier for the given API key. An empty key selects the
// anonymous tier.
func TierFor(apiKey string) Tier {
	if apiKey != "" {
		return Tier{
			RequestsPerSecond: 10,
			MaxResults:        200,
			MaxLinkResults:    300,
			ChunkSize:         200,
		}
	}
	return Tier{
		RequestsPerSecond: 3,
		MaxResults:        100,
		MaxLinkResults:    100,
		ChunkSize:         100,
	}
}

// ClampLimit clamps a requested page size into [1, MaxResults]. A zero
// request selects the default page size before clamping.
func (t Tier) ClampLimit(limit int) int {
	if limit == 0 {
		limit = DefaultResultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > t.MaxResults {
		return t.MaxResults
	}
	return limit
}
