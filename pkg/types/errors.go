package types

import "errors"

// Domain errors for type validation
var (
	// Source errors
	ErrInvalidUTF8 = errors.New("source is not valid UTF-8")

	// Signature errors
	ErrEmptyName       = errors.New("name is required")
	ErrInvalidLocation = errors.New("invalid location: line numbers must be positive")
	ErrDuplicateParam  = errors.New("duplicate parameter name")
	ErrNilType         = errors.New("type expression is required")
	ErrInvalidSeverity = errors.New("invalid severity")

	// Search result errors
	ErrInvalidSignatureID    = errors.New("invalid signature ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrMissingFileInfo       = errors.New("file info is required")
)
