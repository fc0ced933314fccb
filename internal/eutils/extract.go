package eutils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/helixir/pubmed-search-service/internal/domain"
)

const (
	// missingField is the placeholder for absent summary fields.
	missingField = "N/A"

	// noAbstractSentinel is the successful payload for an article without an
	// abstract.
	noAbstractSentinel = "No abstract available"

	// maxListedAuthors is the number of authors listed before truncation.
	maxListedAuthors = 5
)

// paperFromSummary decodes one esummary record into a Paper. Absent text
// fields become "N/A"; absent identifiers stay unset.
func paperFromSummary(pmid string, raw json.RawMessage, fullAuthors bool) (domain.Paper, error) {
	var rec summaryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Paper{}, fmt.Errorf("decode summary record %s: %w", pmid, err)
	}

	id, err := strconv.ParseInt(pmid, 10, 64)
	if err != nil {
		return domain.Paper{}, fmt.Errorf("non-numeric PMID %q", pmid)
	}

	title := rec.Title
	if title == "" {
		title = missingField
	}
	pubDate := rec.PubDate
	if pubDate == "" {
		pubDate = missingField
	}
	journal := rec.FullJournalName
	if journal == "" {
		journal = rec.Source
	}
	if journal == "" {
		journal = missingField
	}

	return domain.Paper{
		Title:   title,
		Authors: formatAuthors(rec.Authors, fullAuthors),
		PubDate: pubDate,
		PMID:    id,
		PMC:     extractPMC(rec.ArticleIDs),
		DOI:     extractDOI(rec.ArticleIDs),
		Journal: journal,
	}, nil
}

// formatAuthors joins the names of entries with authtype "Author". Lists
// longer than maxListedAuthors are truncated with an "et al." suffix unless
// full is set. An empty list becomes "N/A".
func formatAuthors(authors []summaryAuthor, full bool) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.AuthType == "Author" && a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return missingField
	}
	if full || len(names) <= maxListedAuthors {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s et al. (%d more)",
		strings.Join(names[:maxListedAuthors], ", "), len(names)-maxListedAuthors)
}

// extractDOI returns the first DOI article identifier, or empty.
func extractDOI(ids []articleID) string {
	for _, id := range ids {
		if id.IDType == "doi" {
			return id.Value
		}
	}
	return ""
}

// extractPMC parses the numeric portion of the first PMC article identifier.
// Only the first "pmc" entry is considered; a value without the "PMC" prefix
// or with a non-numeric remainder yields nil.
func extractPMC(ids []articleID) *int64 {
	for _, id := range ids {
		if id.IDType != "pmc" {
			continue
		}
		if !strings.HasPrefix(id.Value, "PMC") {
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(id.Value, "PMC"), 10, 64)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

// pmcID returns the first PMC article identifier with its "PMC" prefix
// intact, as required by efetch against the pmc database.
func pmcID(ids []articleID) string {
	for _, id := range ids {
		if id.IDType != "pmc" {
			continue
		}
		if strings.HasPrefix(id.Value, "PMC") {
			return id.Value
		}
		return ""
	}
	return ""
}

// extractAbstract joins abstract sections into one string. Labeled sections
// are rendered as "LABEL: text". An article without abstract text yields the
// no-abstract sentinel, which is a successful outcome.
func extractAbstract(set abstractSet) string {
	var parts []string
	for _, at := range set.Abstracts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return noAbstractSentinel
	}
	return strings.Join(parts, " ")
}

// extractFullText flattens the body paragraphs of a PMC article, joined by
// blank lines. A record without a body or without paragraph text is an error.
func extractFullText(article pmcArticle) (string, error) {
	if len(article.Bodies) == 0 {
		return "", domain.NewMissingDataError("full text", "article body not found in PMC record")
	}
	var paragraphs []string
	for _, body := range article.Bodies {
		for _, p := range body.Paragraphs {
			text := strings.TrimSpace(p)
			if text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
	}
	if len(paragraphs) == 0 {
		return "", domain.NewMissingDataError("full text", "no paragraphs found in article body")
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// hasPMCLink reports whether any provider URL in an llinks response points
// into PubMed Central. The comparison is case-insensitive.
func hasPMCLink(resp elinkResponse) bool {
	for _, ls := range resp.LinkSets {
		for _, entry := range ls.IDURLs {
			if entryHasPMCURL(entry) {
				return true
			}
		}
		for _, entry := range ls.IDURLList {
			if entryHasPMCURL(entry) {
				return true
			}
		}
	}
	return false
}

func entryHasPMCURL(entry idURLEntry) bool {
	if strings.Contains(strings.ToLower(entry.URL.Value), "pmc/articles") {
		return true
	}
	for _, obj := range entry.ObjURLs {
		if strings.Contains(strings.ToLower(obj.URL.Value), "pmc/articles") {
			return true
		}
	}
	return false
}
