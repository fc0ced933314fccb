package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/pubmed-search-service/internal/domain"
	"github.com/helixir/pubmed-search-service/internal/observability"
)

// Request body size limit.
const maxRequestBodySize = 1 << 20 // 1 MB

var validate = validator.New()

// searchRequest is the JSON body for the plain, author and journal searches.
type searchRequest struct {
	Query string `json:"query" validate:"required"`
	Page  int    `json:"page" validate:"omitempty,min=1"`
	Limit int    `json:"limit"`
}

// pmidRequest is the JSON body for the single-article tools.
type pmidRequest struct {
	PMID int64 `json:"pmid" validate:"required,gt=0"`
}

type batchSearchRequest struct {
	Queries []string `json:"queries" validate:"required,min=1,max=50,dive,required"`
	Limit   int      `json:"limit"`
}

type authorSearchRequest struct {
	Author string `json:"author" validate:"required"`
	Limit  int    `json:"limit"`
}

type journalSearchRequest struct {
	Journal string `json:"journal" validate:"required"`
	Limit   int    `json:"limit"`
}

type advancedSearchRequest struct {
	Fields map[string]string `json:"fields" validate:"required,min=1"`
	Limit  int               `json:"limit"`
}

// decodeRequest reads, parses and validates a JSON request body into dst.
// On failure it writes a 400 envelope and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeToolError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeToolError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		writeToolError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}

	return true
}

// validationMessage renders the first validation failure as a client-facing
// message without echoing the submitted values back.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldName(fe))
	case "gt", "min":
		return fmt.Sprintf("%s must be at least %s", fieldName(fe), fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", fieldName(fe), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fieldName(fe))
	}
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "PMID":
		return "pmid"
	case "Query":
		return "query"
	case "Queries":
		return "queries"
	case "Author":
		return "author"
	case "Journal":
		return "journal"
	case "Fields":
		return "fields"
	case "Page":
		return "page"
	default:
		return fe.Field()
	}
}

// finishToolCall records metrics for a completed tool invocation.
func (s *Server) finishToolCall(tool string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordToolCall(tool, err == nil, time.Since(start).Seconds())
}

// logToolError logs a failed tool call with its correlation ID.
func (s *Server) logToolError(r *http.Request, tool string, err error) {
	observability.WithToolContext(s.logger, tool, observability.RequestIDFromContext(r.Context())).
		Error().Err(err).Msg("tool call failed")
}

// handleSearch handles POST /v1/tools/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	const tool = "search"
	var req searchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	result, err := s.backend.Search(r.Context(), req.Query, req.Page, req.Limit)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPapersReturned(len(result.Papers))
	}
	writeToolData(w, result)
}

// handleSimilar handles POST /v1/tools/similar.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	s.handlePaperList(w, r, "similar", s.backend.Similar)
}

// handleCitedReferences handles POST /v1/tools/cited-references.
func (s *Server) handleCitedReferences(w http.ResponseWriter, r *http.Request) {
	s.handlePaperList(w, r, "cited_references", s.backend.CitedReferences)
}

// handleCitingArticles handles POST /v1/tools/citing-articles.
func (s *Server) handleCitingArticles(w http.ResponseWriter, r *http.Request) {
	s.handlePaperList(w, r, "citing_articles", s.backend.CitingArticles)
}

// handlePaperList implements the shared shape of the three citation-graph
// tools: a PMID in, a list of papers out.
func (s *Server) handlePaperList(
	w http.ResponseWriter,
	r *http.Request,
	tool string,
	fetch func(ctx context.Context, pmid int64) ([]domain.Paper, error),
) {
	var req pmidRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	papers, err := fetch(r.Context(), req.PMID)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPapersReturned(len(papers))
	}
	writeToolData(w, papers)
}

// handleAbstract handles POST /v1/tools/abstract.
func (s *Server) handleAbstract(w http.ResponseWriter, r *http.Request) {
	const tool = "abstract"
	var req pmidRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	abstract, err := s.backend.Abstract(r.Context(), req.PMID)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	writeToolData(w, abstractData{PMID: req.PMID, Abstract: abstract})
}

// handleIsOpenAccess handles POST /v1/tools/is-open-access.
func (s *Server) handleIsOpenAccess(w http.ResponseWriter, r *http.Request) {
	const tool = "is_open_access"
	var req pmidRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	openAccess, err := s.backend.IsOpenAccess(r.Context(), req.PMID)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	writeToolData(w, openAccessData{PMID: req.PMID, OpenAccess: openAccess})
}

// handleFullText handles POST /v1/tools/full-text.
func (s *Server) handleFullText(w http.ResponseWriter, r *http.Request) {
	const tool = "full_text"
	var req pmidRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	text, err := s.backend.FullText(r.Context(), req.PMID)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	writeToolData(w, fullTextData{PMID: req.PMID, FullText: text})
}

// handleBatchSearch handles POST /v1/tools/batch-search.
func (s *Server) handleBatchSearch(w http.ResponseWriter, r *http.Request) {
	const tool = "batch_search"
	var req batchSearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	items, err := s.backend.BatchSearch(r.Context(), req.Queries, req.Limit)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	writeToolData(w, batchSearchData{Results: items})
}

// handleSearchByAuthor handles POST /v1/tools/search-by-author.
func (s *Server) handleSearchByAuthor(w http.ResponseWriter, r *http.Request) {
	const tool = "search_by_author"
	var req authorSearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	result, err := s.backend.SearchByAuthor(r.Context(), req.Author, req.Limit)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPapersReturned(len(result.Papers))
	}
	writeToolData(w, result)
}

// handleSearchByJournal handles POST /v1/tools/search-by-journal.
func (s *Server) handleSearchByJournal(w http.ResponseWriter, r *http.Request) {
	const tool = "search_by_journal"
	var req journalSearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	result, err := s.backend.SearchByJournal(r.Context(), req.Journal, req.Limit)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPapersReturned(len(result.Papers))
	}
	writeToolData(w, result)
}

// handleAdvancedSearch handles POST /v1/tools/advanced-search.
func (s *Server) handleAdvancedSearch(w http.ResponseWriter, r *http.Request) {
	const tool = "advanced_search"
	var req advancedSearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	start := time.Now()
	result, err := s.backend.AdvancedSearch(r.Context(), req.Fields, req.Limit)
	s.finishToolCall(tool, start, err)
	if err != nil {
		s.logToolError(r, tool, err)
		writeToolError(w, statusForError(err), err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPapersReturned(len(result.Papers))
	}
	writeToolData(w, result)
}
