package types

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	// Identification
	SignatureID int64
	Rank        int // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 // Normalized BM25 score

	// Metadata
	Name        string
	View        string // Declaration header
	TypeView    string // Signature rendered as a function type
	Description string
	File        *FileInfo
}

// FileInfo contains file metadata for a search result
type FileInfo struct {
	Path   string // Relative to library root
	Line   int
	IsMeta bool
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.SignatureID == 0 {
		return ErrInvalidSignatureID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.File == nil {
		return ErrMissingFileInfo
	}

	if sr.Name == "" {
		return ErrEmptyName
	}

	return nil
}
