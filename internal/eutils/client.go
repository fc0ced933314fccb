package eutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search-service/internal/domain"
	"github.com/helixir/pubmed-search-service/internal/observability"
)

// similarResultLimit caps the neighbor list returned for similar-article
// lookups.
const similarResultLimit = 100

// fieldTags maps advanced-search field names to PubMed field tag suffixes.
// Unrecognized field names pass through as bare terms.
var fieldTags = map[string]string{
	"author":      "[Author]",
	"journal":     "[Journal]",
	"year":        "[Publication Date]",
	"title":       "[Title]",
	"mesh":        "[MeSH Terms]",
	"affiliation": "[Affiliation]",
	"doi":         "[DOI]",
	"keyword":     "[Keyword]",
}

// Config holds the configuration for the E-utilities client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key. Its presence selects the credential tier,
	// raising both the request rate and the result ceilings.
	APIKey string

	// Email is the contact address sent with every request.
	Email string

	// Timeout is the per-attempt request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RetryDelay is the base delay between retries.
	// Defaults to DefaultRetryDelay if zero.
	RetryDelay time.Duration

	// FullAuthorLists disables author list truncation in summaries.
	FullAuthorLists bool

	// Logger receives client and transport log output.
	Logger zerolog.Logger

	// Metrics, when non-nil, receives upstream request metrics.
	Metrics *observability.Metrics
}

// Client exposes the PubMed tool operations over the E-utilities API.
// All methods are safe for concurrent use.
type Client struct {
	tier      Tier
	transport *Transport
	fetcher   *BatchFetcher
}

// New creates a client with its own transport. The credential tier is
// derived once from the API key and fixed for the client's lifetime.
func New(cfg Config) *Client {
	tier := TierFor(cfg.APIKey)
	transport := NewTransport(TransportConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Email:      cfg.Email,
		Timeout:    cfg.Timeout,
		RetryDelay: cfg.RetryDelay,
		Tier:       tier,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	return NewWithTransport(transport, tier, cfg.FullAuthorLists)
}

// NewWithTransport creates a client around an existing transport.
// This is useful for testing with mock servers.
func NewWithTransport(transport *Transport, tier Tier, fullAuthorLists bool) *Client {
	return &Client{
		tier:      tier,
		transport: transport,
		fetcher:   NewBatchFetcher(transport, tier, fullAuthorLists),
	}
}

// Tier returns the active credential tier.
func (c *Client) Tier() Tier {
	return c.tier
}

// Close releases the transport's connection resources.
func (c *Client) Close() {
	c.transport.Close()
}

// Search runs a relevance-sorted PubMed query and resolves the resulting
// identifier page into Papers. Page and limit are clamped to at least 1, and
// limit additionally to the tier maximum.
func (c *Client) Search(ctx context.Context, query string, page, limit int) (*domain.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	limit = c.tier.ClampLimit(limit)
	offset := (page - 1) * limit

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(limit))
	params.Set("retstart", strconv.Itoa(offset))
	params.Set("sort", "relevance")
	params.Set("usehistory", "y")

	var resp esearchResponse
	if err := c.transport.GetJSON(ctx, "esearch.fcgi", params, &resp); err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	papers, err := c.fetcher.FetchDetails(ctx, resp.Result.IDList)
	if err != nil {
		return nil, fmt.Errorf("summary fetch failed: %w", err)
	}

	return &domain.SearchResult{
		Count:  resp.Result.CountInt(),
		Papers: papers,
	}, nil
}

// Similar finds articles related to the given PMID via the precomputed
// neighbor index.
func (c *Client) Similar(ctx context.Context, pmid int64) ([]domain.Paper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("cmd", "neighbor_score")
	params.Set("id", strconv.FormatInt(pmid, 10))
	params.Set("linkname", linkNameSimilar)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(similarResultLimit))

	var resp elinkResponse
	if err := c.transport.GetJSON(ctx, "elink.fcgi", params, &resp); err != nil {
		return nil, fmt.Errorf("elink failed: %w", err)
	}

	return c.fetcher.FetchDetails(ctx, neighborIDs(resp, linkNameSimilar))
}

// CitedReferences lists the articles the given article cites.
func (c *Client) CitedReferences(ctx context.Context, pmid int64) ([]domain.Paper, error) {
	return c.linkedPapers(ctx, pmid, linkNameReferences)
}

// CitingArticles lists the articles that cite the given article.
func (c *Client) CitingArticles(ctx context.Context, pmid int64) ([]domain.Paper, error) {
	return c.linkedPapers(ctx, pmid, linkNameCitedIn)
}

// linkedPapers performs the two-step link-then-search continuation for a
// directional citation relation. An absent or empty session handle means the
// relation has no results.
func (c *Client) linkedPapers(ctx context.Context, pmid int64, linkName string) ([]domain.Paper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("cmd", "neighbor_history")
	params.Set("id", strconv.FormatInt(pmid, 10))
	params.Set("linkname", linkName)
	params.Set("retmode", "json")

	var linkResp elinkResponse
	if err := c.transport.GetJSON(ctx, "elink.fcgi", params, &linkResp); err != nil {
		return nil, fmt.Errorf("elink failed: %w", err)
	}

	handle := sessionHandleFrom(linkResp)
	if handle.Empty() {
		return []domain.Paper{}, nil
	}

	searchParams := url.Values{}
	searchParams.Set("db", "pubmed")
	searchParams.Set("term", "")
	searchParams.Set("WebEnv", handle.WebEnv)
	searchParams.Set("query_key", handle.QueryKey)
	searchParams.Set("retmode", "json")
	searchParams.Set("retmax", strconv.Itoa(c.tier.MaxLinkResults))

	var searchResp esearchResponse
	if err := c.transport.GetJSON(ctx, "esearch.fcgi", searchParams, &searchResp); err != nil {
		return nil, fmt.Errorf("continuation search failed: %w", err)
	}

	return c.fetcher.FetchDetails(ctx, searchResp.Result.IDList)
}

// Abstract retrieves the abstract text of an article. An article without an
// abstract yields the "No abstract available" sentinel, not an error.
func (c *Client) Abstract(ctx context.Context, pmid int64) (string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strconv.FormatInt(pmid, 10))
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")

	var set abstractSet
	if err := c.transport.GetXML(ctx, "efetch.fcgi", params, &set); err != nil {
		return "", fmt.Errorf("efetch failed: %w", err)
	}

	return extractAbstract(set), nil
}

// IsOpenAccess reports whether a free full-text copy of the article exists
// in PubMed Central.
func (c *Client) IsOpenAccess(ctx context.Context, pmid int64) (bool, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("dbfrom", "pubmed")
	params.Set("cmd", "llinks")
	params.Set("id", strconv.FormatInt(pmid, 10))
	params.Set("retmode", "json")

	var resp elinkResponse
	if err := c.transport.GetJSON(ctx, "elink.fcgi", params, &resp); err != nil {
		return false, fmt.Errorf("elink failed: %w", err)
	}

	return hasPMCLink(resp), nil
}

// FullText retrieves the body text of an open-access article from PubMed
// Central. It fails for articles without a free full-text copy, without a
// PMC identifier, or whose PMC record carries no body paragraphs.
func (c *Client) FullText(ctx context.Context, pmid int64) (string, error) {
	openAccess, err := c.IsOpenAccess(ctx, pmid)
	if err != nil {
		return "", err
	}
	if !openAccess {
		return "", fmt.Errorf("article %d is not available in PMC: %w", pmid, domain.ErrNotOpenAccess)
	}

	id := strconv.FormatInt(pmid, 10)
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", id)
	params.Set("retmode", "json")

	var summary esummaryResponse
	if err := c.transport.GetJSON(ctx, "esummary.fcgi", params, &summary); err != nil {
		return "", fmt.Errorf("esummary failed: %w", err)
	}

	raw, ok := summary.Result[id]
	if !ok {
		return "", domain.NewMissingDataError("full text", "no summary record for article")
	}
	var rec summaryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", domain.NewMalformedResponseError("esummary", err)
	}

	pmc := pmcID(rec.ArticleIDs)
	if pmc == "" {
		return "", domain.NewMissingDataError("full text", "no PMC identifier found for article")
	}

	fetchParams := url.Values{}
	fetchParams.Set("db", "pmc")
	fetchParams.Set("id", pmc)
	fetchParams.Set("retmode", "xml")
	fetchParams.Set("rettype", "full")

	var article pmcArticle
	if err := c.transport.GetXML(ctx, "efetch.fcgi", fetchParams, &article); err != nil {
		return "", fmt.Errorf("efetch failed: %w", err)
	}

	return extractFullText(article)
}

// BatchSearch runs one plain search per input query concurrently and returns
// one result slot per query in input order. An individual query failure
// becomes an in-slot error marker instead of failing the whole batch.
func (c *Client) BatchSearch(ctx context.Context, queries []string, limit int) ([]domain.BatchSearchItem, error) {
	limit = c.tier.ClampLimit(limit)

	items := make([]domain.BatchSearchItem, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := c.Search(ctx, query, 1, limit)
			if err != nil {
				items[i] = domain.BatchSearchItem{Query: query, Error: err.Error()}
				return
			}
			items[i] = domain.BatchSearchItem{Query: query, Success: true, Data: result}
		}()
	}
	wg.Wait()

	return items, nil
}

// SearchByAuthor searches for papers by a specific author. The name should
// be in "Last Name, First Initial" form.
func (c *Client) SearchByAuthor(ctx context.Context, author string, limit int) (*domain.SearchResult, error) {
	return c.Search(ctx, author+"[Author]", 1, limit)
}

// SearchByJournal searches for papers published in a specific journal.
func (c *Client) SearchByJournal(ctx context.Context, journal string, limit int) (*domain.SearchResult, error) {
	return c.Search(ctx, journal+"[Journal]", 1, limit)
}

// AdvancedSearch builds a field-tagged query from the given field/term pairs
// and runs a plain search with it.
func (c *Client) AdvancedSearch(ctx context.Context, fields map[string]string, limit int) (*domain.SearchResult, error) {
	return c.Search(ctx, buildAdvancedQuery(fields), 1, limit)
}

// buildAdvancedQuery joins field-tagged terms with AND. Fields are processed
// in sorted name order so the query is deterministic.
func buildAdvancedQuery(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if tag, ok := fieldTags[name]; ok {
			parts = append(parts, fields[name]+tag)
		} else {
			parts = append(parts, fields[name])
		}
	}
	return strings.Join(parts, " AND ")
}
