package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/luacats-mcp/internal/storage"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Name prefix + BM25 with RRF
	SearchModeName    SearchMode = "name"    // Name prefix only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

// ErrNoSearchTerms is returned when a query has nothing to match on
var ErrNoSearchTerms = errors.New("query has no searchable terms")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	LibraryID   int64
	UseCache    bool // Whether to use query cache
	CacheTTL    time.Duration
	RRFConstant float64 // k value for Reciprocal Rank Fusion (default 60)
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	SearchMode   SearchMode
	Duration     time.Duration
	CacheHit     bool
	NameResults  int
	TextResults  int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher coordinates search operations over stored signatures
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(storage storage.Storage) *Searcher {
	// Create LRU cache with 1000 entry limit
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage: storage,
		cache:   cache,
	}
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached, ok := s.checkCache(req); ok {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	case SearchModeName:
		response, err = s.nameSearch(ctx, req)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// rankedResult represents a signature with its relevance score and rank
type rankedResult struct {
	signatureID int64
	score       float64
	rank        int
}

// matchQuery turns free text into an FTS5 query: every term becomes a
// quoted prefix match, any term may match
func matchQuery(query string) (string, error) {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(terms) == 0 {
		return "", ErrNoSearchTerms
	}
	for i, t := range terms {
		terms[i] = `"` + t + `"*`
	}
	return strings.Join(terms, " OR "), nil
}

func (s *Searcher) textResults(ctx context.Context, req SearchRequest, limit int) ([]rankedResult, error) {
	match, err := matchQuery(req.Query)
	if err != nil {
		return nil, err
	}
	textResults, err := s.storage.SearchText(ctx, req.LibraryID, match, limit)
	if err != nil {
		return nil, err
	}
	ranked := make([]rankedResult, len(textResults))
	for i, tr := range textResults {
		ranked[i] = rankedResult{signatureID: tr.SignatureID, score: tr.BM25Score, rank: i + 1}
	}
	return ranked, nil
}

// nameResults lists signatures whose name starts with the query. An exact
// match ranks first, then shorter names.
func (s *Searcher) nameResults(ctx context.Context, req SearchRequest, limit int) ([]rankedResult, error) {
	prefix := strings.TrimSpace(req.Query)
	sigs, err := s.storage.ListSignatures(ctx, req.LibraryID, &storage.SignatureFilters{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sigs, func(i, j int) bool {
		ei, ej := sigs[i].Name == prefix, sigs[j].Name == prefix
		if ei != ej {
			return ei
		}
		if len(sigs[i].Name) != len(sigs[j].Name) {
			return len(sigs[i].Name) < len(sigs[j].Name)
		}
		return sigs[i].Name < sigs[j].Name
	})
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	ranked := make([]rankedResult, len(sigs))
	for i, sig := range sigs {
		ranked[i] = rankedResult{
			signatureID: sig.ID,
			score:       float64(len(prefix)) / float64(len(sig.Name)),
			rank:        i + 1,
		}
	}
	return ranked, nil
}

// hybridSearch combines name and BM25 search using Reciprocal Rank Fusion
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	names, err := s.nameResults(ctx, req, req.Limit*2)
	if err != nil {
		return nil, err
	}
	texts, err := s.textResults(ctx, req, req.Limit*2)
	if err != nil && !errors.Is(err, ErrNoSearchTerms) {
		return nil, err
	}

	rrf := s.applyRRF(names, texts, req.RRFConstant)
	results, err := s.fetchResults(ctx, rrf, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		NameResults:  len(names),
		TextResults:  len(texts),
	}, nil
}

// nameSearch performs only name prefix search
func (s *Searcher) nameSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	names, err := s.nameResults(ctx, req, req.Limit)
	if err != nil {
		return nil, err
	}
	results, err := s.fetchResults(ctx, names, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		NameResults:  len(names),
	}, nil
}

// keywordSearch performs only BM25 text search
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	texts, err := s.textResults(ctx, req, req.Limit)
	if err != nil {
		return nil, err
	}
	results, err := s.fetchResults(ctx, texts, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(texts),
	}, nil
}

// applyRRF applies Reciprocal Rank Fusion to combine name and text results
// RRF formula: RRF(d) = Σ 1/(k + rank(d))
func (s *Searcher) applyRRF(nameResults, textResults []rankedResult, k float64) []rankedResult {
	if k == 0 {
		k = 60 // Default RRF constant
	}

	scores := make(map[int64]float64)
	for _, r := range nameResults {
		scores[r.signatureID] += 1.0 / (k + float64(r.rank))
	}
	for _, r := range textResults {
		scores[r.signatureID] += 1.0 / (k + float64(r.rank))
	}

	results := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, rankedResult{signatureID: id, score: score})
	}

	sortRankedResults(results)
	for i := range results {
		results[i].rank = i + 1
	}
	return results
}

// fetchResults loads the signatures of ranked results. Scores are
// normalized so the best result scores 1.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	maxScore := 0.0
	for _, rr := range ranked[:limit] {
		maxScore = max(maxScore, rr.score)
	}

	results := make([]types.SearchResult, 0, limit)
	for _, rr := range ranked[:limit] {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sig, err := s.storage.GetSignatureByID(ctx, rr.signatureID)
		if err != nil {
			continue // Skip signatures removed since the search ran
		}

		score := 0.0
		if maxScore > 0 {
			score = rr.score / maxScore
		}
		results = append(results, sig.ToSearchResult(len(results)+1, score))
	}

	return results, nil
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if req.LibraryID <= 0 {
		return fmt.Errorf("library ID is required")
	}

	if req.Limit <= 0 {
		req.Limit = 10 // Default limit
	}

	if req.Limit > 100 {
		req.Limit = 100 // Max limit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid // Default mode
	}

	if req.RRFConstant == 0 {
		req.RRFConstant = 60 // Default k value
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = 1 * time.Hour // Default TTL
	}

	return nil
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(req SearchRequest) (*SearchResponse, bool) {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response, true
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result
		// FileInfo holds only primitive fields
		if result.File != nil {
			fileCopy := *result.File
			dst.Results[i].File = &fileCopy
		}
	}
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	key := fmt.Sprintf("%s|%s|%d|%d|%.2f", req.Query, req.Mode, req.LibraryID, req.Limit, req.RRFConstant)
	return sha256.Sum256([]byte(key))
}

// sortRankedResults sorts results by score in descending order, then by ID
// so that ties are stable
func sortRankedResults(results []rankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].signatureID < results[j].signatureID
	})
}

// InvalidateCache drops every cached query. It is called after a library
// is reindexed.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached queries
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}
