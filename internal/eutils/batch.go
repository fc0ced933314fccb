package eutils

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/pubmed-search-service/internal/domain"
)

// BatchFetcher resolves identifier lists into Papers via chunked esummary
// calls. Chunks are fetched concurrently through the shared transport, which
// bounds actual upstream parallelism, and results are reassembled in input
// order.
type BatchFetcher struct {
	transport   *Transport
	chunkSize   int
	fullAuthors bool
}

// NewBatchFetcher creates a batch fetcher. The chunk size comes from the
// credential tier; fullAuthors disables author list truncation.
func NewBatchFetcher(transport *Transport, tier Tier, fullAuthors bool) *BatchFetcher {
	chunkSize := tier.ChunkSize
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &BatchFetcher{
		transport:   transport,
		chunkSize:   chunkSize,
		fullAuthors: fullAuthors,
	}
}

// FetchDetails retrieves document summaries for the given PMIDs. Output order
// follows input order. An identifier with no matching record in the response
// is skipped, not an error. Empty input yields empty output without any
// upstream call.
func (f *BatchFetcher) FetchDetails(ctx context.Context, pmids []string) ([]domain.Paper, error) {
	if len(pmids) == 0 {
		return []domain.Paper{}, nil
	}

	chunks := chunkStrings(pmids, f.chunkSize)
	results := make([][]domain.Paper, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			papers, err := f.fetchChunk(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = papers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(pmids))
	for _, chunkPapers := range results {
		papers = append(papers, chunkPapers...)
	}
	return papers, nil
}

// fetchChunk retrieves one esummary page and extracts the records matching
// the requested identifiers, in request order.
func (f *BatchFetcher) fetchChunk(ctx context.Context, pmids []string) ([]domain.Paper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")

	var resp esummaryResponse
	if err := f.transport.GetJSON(ctx, "esummary.fcgi", params, &resp); err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(pmids))
	for _, pmid := range pmids {
		// The result map carries a "uids" index entry alongside the records.
		if pmid == "uids" {
			continue
		}
		raw, ok := resp.Result[pmid]
		if !ok {
			continue
		}
		paper, err := paperFromSummary(pmid, raw, f.fullAuthors)
		if err != nil {
			continue
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

// chunkStrings splits items into consecutive slices of at most size elements.
func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
