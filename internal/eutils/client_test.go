package eutils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-search-service/internal/domain"
)

// Sample JSON responses for testing.
const esearchResponseJSON = `{
	"esearchresult": {
		"count": "2",
		"idlist": ["12345678", "87654321"],
		"webenv": "WE1",
		"querykey": "1"
	}
}`

const esummaryResponseJSON = `{
	"result": {
		"uids": ["12345678", "87654321"],
		"12345678": {
			"uid": "12345678",
			"title": "CRISPR-Cas9 Gene Editing",
			"pubdate": "2023 Mar 15",
			"source": "J Test",
			"fulljournalname": "Journal of Testing",
			"authors": [
				{"name": "Smith JA", "authtype": "Author"},
				{"name": "Johnson E", "authtype": "Author"}
			],
			"articleids": [
				{"idtype": "pubmed", "value": "12345678"},
				{"idtype": "doi", "value": "10.1234/test.2023.001"},
				{"idtype": "pmc", "value": "PMC9876543"}
			]
		},
		"87654321": {
			"uid": "87654321",
			"title": "Advances in Gene Therapy",
			"pubdate": "2022 Jan",
			"source": "Mol Ther Methods",
			"authors": [{"name": "Brown M", "authtype": "Author"}],
			"articleids": [{"idtype": "pubmed", "value": "87654321"}]
		}
	}
}`

const elinkNeighborScoreJSON = `{
	"linksets": [{
		"linksetdbs": [{
			"linkname": "pubmed_pubmed",
			"links": [{"id": "12345678", "score": 9}, {"id": "87654321", "score": 7}]
		}]
	}]
}`

const elinkHistoryJSON = `{
	"linksets": [{
		"webenv": "WE7",
		"linksetdbhistory": [{"linkname": "pubmed_pubmed_refs", "querykey": "3"}]
	}]
}`

const elinkEmptyHistoryJSON = `{"linksets": [{}]}`

const elinkOpenAccessJSON = `{
	"linksets": [{
		"idurllist": [{
			"id": "12345678",
			"objurls": [{"url": {"value": "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC9876543/"}}]
		}]
	}]
}`

const elinkNotOpenAccessJSON = `{
	"linksets": [{
		"idurllist": [{
			"id": "12345678",
			"objurls": [{"url": {"value": "https://publisher.example.org/doi/10.1234"}}]
		}]
	}]
}`

const efetchAbstractXML = `<?xml version="1.0"?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<Article>
				<Abstract>
					<AbstractText Label="BACKGROUND">Gene editing has advanced rapidly.</AbstractText>
					<AbstractText Label="CONCLUSION">Therapeutic use is growing.</AbstractText>
				</Abstract>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchFullTextXML = `<?xml version="1.0"?>
<pmc-articleset>
	<article>
		<body>
			<sec>
				<p>First paragraph.</p>
				<p>Second paragraph.</p>
			</sec>
		</body>
	</article>
</pmc-articleset>`

func newTestClient(serverURL string, tier Tier) *Client {
	return NewWithTransport(newTestTransport(serverURL, tier), tier, false)
}

func TestClientSearch(t *testing.T) {
	t.Run("successful search with results", func(t *testing.T) {
		var searchQuery url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "esearch.fcgi"):
				searchQuery = r.URL.Query()
				w.Write([]byte(esearchResponseJSON))
			case strings.Contains(r.URL.Path, "esummary.fcgi"):
				w.Write([]byte(esummaryResponseJSON))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		result, err := client.Search(context.Background(), "CRISPR gene editing", 1, 20)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, 2, result.Count)
		require.Len(t, result.Papers, 2)

		paper := result.Papers[0]
		assert.Equal(t, "CRISPR-Cas9 Gene Editing", paper.Title)
		assert.Equal(t, "Smith JA, Johnson E", paper.Authors)
		assert.Equal(t, "2023 Mar 15", paper.PubDate)
		assert.Equal(t, int64(12345678), paper.PMID)
		require.NotNil(t, paper.PMC)
		assert.Equal(t, int64(9876543), *paper.PMC)
		assert.Equal(t, "10.1234/test.2023.001", paper.DOI)
		assert.Equal(t, "Journal of Testing", paper.Journal)

		assert.Equal(t, "Advances in Gene Therapy", result.Papers[1].Title)
		assert.Nil(t, result.Papers[1].PMC)

		assert.Equal(t, "CRISPR gene editing", searchQuery.Get("term"))
		assert.Equal(t, "relevance", searchQuery.Get("sort"))
		assert.Equal(t, "y", searchQuery.Get("usehistory"))
		assert.Equal(t, "20", searchQuery.Get("retmax"))
		assert.Equal(t, "0", searchQuery.Get("retstart"))
	})

	t.Run("pagination clamping", func(t *testing.T) {
		tests := []struct {
			name         string
			page, limit  int
			wantRetmax   string
			wantRetstart string
		}{
			{"defaults", 0, 0, "10", "0"},
			{"negative limit", 1, -5, "1", "0"},
			{"limit above tier maximum", 1, 500, "100", "0"},
			{"later page", 3, 20, "20", "40"},
			{"negative page", -2, 10, "10", "0"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var searchQuery url.Values
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					switch {
					case strings.Contains(r.URL.Path, "esearch.fcgi"):
						searchQuery = r.URL.Query()
						w.Write([]byte(`{"esearchresult": {"count": "0", "idlist": []}}`))
					case strings.Contains(r.URL.Path, "esummary.fcgi"):
						t.Error("esummary should not be called for an empty identifier page")
					}
				}))
				defer server.Close()

				client := newTestClient(server.URL, testTier)

				result, err := client.Search(context.Background(), "anything", tt.page, tt.limit)
				require.NoError(t, err)
				assert.Empty(t, result.Papers)
				assert.Equal(t, tt.wantRetmax, searchQuery.Get("retmax"))
				assert.Equal(t, tt.wantRetstart, searchQuery.Get("retstart"))
			})
		}
	})
}

func TestClientSimilar(t *testing.T) {
	var linkQuery url.Values
	var summaryIDs string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "elink.fcgi"):
			linkQuery = r.URL.Query()
			w.Write([]byte(elinkNeighborScoreJSON))
		case strings.Contains(r.URL.Path, "esummary.fcgi"):
			summaryIDs = r.URL.Query().Get("id")
			w.Write([]byte(esummaryResponseJSON))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL, testTier)

	papers, err := client.Similar(context.Background(), 12345678)
	require.NoError(t, err)

	require.Len(t, papers, 2)
	assert.Equal(t, "CRISPR-Cas9 Gene Editing", papers[0].Title)

	assert.Equal(t, "neighbor_score", linkQuery.Get("cmd"))
	assert.Equal(t, "pubmed_pubmed", linkQuery.Get("linkname"))
	assert.Equal(t, "12345678", linkQuery.Get("id"))
	assert.Equal(t, "12345678,87654321", summaryIDs)
}

func TestClientCitationRelations(t *testing.T) {
	t.Run("resolves session handle through continuation search", func(t *testing.T) {
		var linkQuery, searchQuery url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				linkQuery = r.URL.Query()
				w.Write([]byte(elinkHistoryJSON))
			case strings.Contains(r.URL.Path, "esearch.fcgi"):
				searchQuery = r.URL.Query()
				w.Write([]byte(esearchResponseJSON))
			case strings.Contains(r.URL.Path, "esummary.fcgi"):
				w.Write([]byte(esummaryResponseJSON))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		papers, err := client.CitedReferences(context.Background(), 12345678)
		require.NoError(t, err)
		require.Len(t, papers, 2)

		assert.Equal(t, "neighbor_history", linkQuery.Get("cmd"))
		assert.Equal(t, "pubmed_pubmed_refs", linkQuery.Get("linkname"))

		assert.Equal(t, "WE7", searchQuery.Get("WebEnv"))
		assert.Equal(t, "3", searchQuery.Get("query_key"))
		assert.Equal(t, "100", searchQuery.Get("retmax"))
	})

	t.Run("citing articles use the citedin link", func(t *testing.T) {
		var linkQuery url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				linkQuery = r.URL.Query()
				w.Write([]byte(elinkEmptyHistoryJSON))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		_, err := client.CitingArticles(context.Background(), 12345678)
		require.NoError(t, err)
		assert.Equal(t, "pubmed_pubmed_citedin", linkQuery.Get("linkname"))
	})

	t.Run("empty handle means no results", func(t *testing.T) {
		var searchCalls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				w.Write([]byte(elinkEmptyHistoryJSON))
			case strings.Contains(r.URL.Path, "esearch.fcgi"):
				searchCalls.Add(1)
				w.Write([]byte(esearchResponseJSON))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		papers, err := client.CitedReferences(context.Background(), 12345678)
		require.NoError(t, err)
		assert.Empty(t, papers)
		assert.Equal(t, int32(0), searchCalls.Load())
	})
}

func TestClientAbstract(t *testing.T) {
	t.Run("labeled sections", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abstract", r.URL.Query().Get("rettype"))
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(efetchAbstractXML))
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		abstract, err := client.Abstract(context.Background(), 12345678)
		require.NoError(t, err)
		assert.Equal(t,
			"BACKGROUND: Gene editing has advanced rapidly. CONCLUSION: Therapeutic use is growing.",
			abstract)
	})

	t.Run("article without abstract", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(`<?xml version="1.0"?><PubmedArticleSet><PubmedArticle></PubmedArticle></PubmedArticleSet>`))
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		abstract, err := client.Abstract(context.Background(), 12345678)
		require.NoError(t, err)
		assert.Equal(t, "No abstract available", abstract)
	})
}

func TestClientIsOpenAccess(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"pmc link present", elinkOpenAccessJSON, true},
		{"publisher links only", elinkNotOpenAccessJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var linkQuery url.Values
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				linkQuery = r.URL.Query()
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			client := newTestClient(server.URL, testTier)

			openAccess, err := client.IsOpenAccess(context.Background(), 12345678)
			require.NoError(t, err)
			assert.Equal(t, tt.want, openAccess)
			assert.Equal(t, "llinks", linkQuery.Get("cmd"))
		})
	}
}

func TestClientFullText(t *testing.T) {
	t.Run("retrieves body of open access article", func(t *testing.T) {
		var fetchQuery url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				w.Write([]byte(elinkOpenAccessJSON))
			case strings.Contains(r.URL.Path, "esummary.fcgi"):
				w.Write([]byte(esummaryResponseJSON))
			case strings.Contains(r.URL.Path, "efetch.fcgi"):
				fetchQuery = r.URL.Query()
				w.Header().Set("Content-Type", "application/xml")
				w.Write([]byte(efetchFullTextXML))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		text, err := client.FullText(context.Background(), 12345678)
		require.NoError(t, err)
		assert.Equal(t, "First paragraph.\n\nSecond paragraph.", text)

		assert.Equal(t, "pmc", fetchQuery.Get("db"))
		assert.Equal(t, "PMC9876543", fetchQuery.Get("id"))
		assert.Equal(t, "full", fetchQuery.Get("rettype"))
	})

	t.Run("not open access", func(t *testing.T) {
		var fetchCalls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				w.Write([]byte(elinkNotOpenAccessJSON))
			case strings.Contains(r.URL.Path, "efetch.fcgi"):
				fetchCalls.Add(1)
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		_, err := client.FullText(context.Background(), 12345678)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotOpenAccess))
		assert.Equal(t, int32(0), fetchCalls.Load())
	})

	t.Run("no pmc identifier", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				w.Write([]byte(elinkOpenAccessJSON))
			case strings.Contains(r.URL.Path, "esummary.fcgi"):
				w.Write([]byte(`{"result": {"uids": ["12345678"], "12345678": {"uid": "12345678", "articleids": [{"idtype": "pubmed", "value": "12345678"}]}}}`))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		_, err := client.FullText(context.Background(), 12345678)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PMC identifier")
	})

	t.Run("body without paragraphs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "elink.fcgi"):
				w.Write([]byte(elinkOpenAccessJSON))
			case strings.Contains(r.URL.Path, "esummary.fcgi"):
				w.Write([]byte(esummaryResponseJSON))
			case strings.Contains(r.URL.Path, "efetch.fcgi"):
				w.Header().Set("Content-Type", "application/xml")
				w.Write([]byte(`<?xml version="1.0"?><pmc-articleset><article><body><sec></sec></body></article></pmc-articleset>`))
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL, testTier)

		_, err := client.FullText(context.Background(), 12345678)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "paragraphs")
	})
}

func TestClientBatchSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch.fcgi"):
			if strings.Contains(r.URL.Query().Get("term"), "failing") {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			w.Write([]byte(esearchResponseJSON))
		case strings.Contains(r.URL.Path, "esummary.fcgi"):
			w.Write([]byte(esummaryResponseJSON))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL, testTier)

	queries := []string{"gene editing", "failing query", "gene therapy"}
	items, err := client.BatchSearch(context.Background(), queries, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "gene editing", items[0].Query)
	assert.True(t, items[0].Success)
	require.NotNil(t, items[0].Data)
	assert.Equal(t, 2, items[0].Data.Count)

	assert.Equal(t, "failing query", items[1].Query)
	assert.False(t, items[1].Success)
	assert.NotEmpty(t, items[1].Error)
	assert.Nil(t, items[1].Data)

	assert.Equal(t, "gene therapy", items[2].Query)
	assert.True(t, items[2].Success)
}

func TestClientDerivedSearches(t *testing.T) {
	var terms []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "esearch.fcgi"):
			terms = append(terms, r.URL.Query().Get("term"))
			w.Write([]byte(`{"esearchresult": {"count": "0", "idlist": []}}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL, testTier)

	_, err := client.SearchByAuthor(context.Background(), "Smith, J", 10)
	require.NoError(t, err)

	_, err = client.SearchByJournal(context.Background(), "Nature", 10)
	require.NoError(t, err)

	_, err = client.AdvancedSearch(context.Background(), map[string]string{
		"author": "Smith J",
		"year":   "2020",
		"custom": "raw term",
	}, 10)
	require.NoError(t, err)

	require.Len(t, terms, 3)
	assert.Equal(t, "Smith, J[Author]", terms[0])
	assert.Equal(t, "Nature[Journal]", terms[1])
	assert.Equal(t, "Smith J[Author] AND raw term AND 2020[Publication Date]", terms[2])
}

func TestBuildAdvancedQuery(t *testing.T) {
	t.Run("known fields get tags", func(t *testing.T) {
		query := buildAdvancedQuery(map[string]string{
			"mesh":  "Drug Therapy",
			"title": "cancer",
		})
		assert.Equal(t, "Drug Therapy[MeSH Terms] AND cancer[Title]", query)
	})

	t.Run("unknown fields pass through bare", func(t *testing.T) {
		query := buildAdvancedQuery(map[string]string{"anything": "free text"})
		assert.Equal(t, "free text", query)
	})

	t.Run("empty map", func(t *testing.T) {
		assert.Empty(t, buildAdvancedQuery(nil))
	})
}

func TestNewClientTier(t *testing.T) {
	t.Run("anonymous client", func(t *testing.T) {
		client := New(Config{})
		defer client.Close()
		assert.Equal(t, 3, client.Tier().RequestsPerSecond)
	})

	t.Run("keyed client", func(t *testing.T) {
		client := New(Config{APIKey: "key"})
		defer client.Close()
		assert.Equal(t, 10, client.Tier().RequestsPerSecond)
		assert.Equal(t, 200, client.Tier().MaxResults)
	})
}
