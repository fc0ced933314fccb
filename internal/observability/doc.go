// Package observability provides logging and metrics support for the PubMed
// search service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for tool calls and E-utilities requests
//   - Context helpers for propagating request identity
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("tool", "pubmed_search").Msg("tool call started")
//
// Add request context to a logger:
//
//	logger = observability.WithToolContext(logger, tool, requestID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("pubmed_search")
//
// Record metrics:
//
//	metrics.RecordToolCall("pubmed_search", true, 0.42)
//	metrics.RecordUpstreamRequest("esearch", 0.12)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - tool: Tool name (pubmed_search, pubmed_abstract, etc.)
//   - endpoint: E-utilities endpoint (esearch, esummary, elink, efetch)
//   - query: Search expression sent to esearch
//   - pmid: PubMed article identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
