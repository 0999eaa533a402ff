// Package searcher implements symbol search over an indexed stub library,
// combining name prefix matching with BM25 full-text matching.
//
// The searcher provides three search modes:
//   - Hybrid: Combines name prefix + BM25 keyword search (default)
//   - Name: Signatures whose name starts with the query
//   - Keyword: BM25 full-text search over names, descriptions and types
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    LibraryID: lib.ID,
//	    Query:     "string.rep",
//	    Limit:     10,
//	})
//
//	for _, result := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n",
//	        result.Rank, result.Name, result.RelevanceScore)
//	}
//
// # Ranking
//
// Hybrid mode merges the two ranked lists with Reciprocal Rank Fusion:
//
//	RRF(d) = sum over lists of 1/(k + rank(d))
//
// with k = 60 unless the request sets RRFConstant. Scores in the response
// are normalized so the best result scores 1.
//
// Keyword queries are split into terms on anything that is not a letter,
// digit or underscore, and each term becomes an FTS5 prefix match. A query
// with no terms fails with ErrNoSearchTerms in keyword mode and falls back
// to name matching in hybrid mode.
//
// # Caching
//
// Responses can be cached in an LRU of 1000 entries keyed by query, mode,
// library, limit and k. Entries expire after CacheTTL (default one hour).
// Call InvalidateCache after reindexing a library.
package searcher
