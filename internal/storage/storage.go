package storage

import (
	"context"
	"time"

	"github.com/dshills/luacats-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed stub libraries
type Storage interface {
	// Library operations
	CreateLibrary(ctx context.Context, lib *Library) error
	GetLibrary(ctx context.Context, rootPath string) (*Library, error)
	GetLibraryByID(ctx context.Context, libraryID int64) (*Library, error)
	UpdateLibrary(ctx context.Context, lib *Library) error
	ListLibraries(ctx context.Context) ([]*Library, error)

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, libraryID int64, filePath string) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, libraryID int64) ([]*File, error)

	// Signature operations
	InsertSignature(ctx context.Context, sig *Signature) error
	GetSignature(ctx context.Context, libraryID int64, name string) (*Signature, error)
	GetSignatureByID(ctx context.Context, signatureID int64) (*Signature, error)
	ListSignatures(ctx context.Context, libraryID int64, filters *SignatureFilters) ([]*Signature, error)
	DeleteSignaturesByFile(ctx context.Context, fileID int64) error

	// Alias operations
	InsertAlias(ctx context.Context, alias *Alias) error
	GetAlias(ctx context.Context, libraryID int64, name string) (*Alias, error)
	ListAliases(ctx context.Context, libraryID int64) ([]*Alias, error)
	DeleteAliasesByFile(ctx context.Context, fileID int64) error

	// Diagnostic operations
	ReplaceDiagnostics(ctx context.Context, libraryID int64, diags []*Diagnostic) error
	ListDiagnostics(ctx context.Context, libraryID int64, filters *DiagnosticFilters) ([]*Diagnostic, error)

	// Search operations
	SearchText(ctx context.Context, libraryID int64, query string, limit int) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context, libraryID int64) (*LibraryStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Library represents an indexed directory of stub files
type Library struct {
	ID              int64
	RootPath        string
	ScanID          string // UUID of the scan that last wrote the library
	TotalFiles      int
	TotalSignatures int
	Complete        bool
	IndexVersion    string
	LastIndexedAt   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// File represents a tracked stub file
type File struct {
	ID          int64
	LibraryID   int64
	FilePath    string // Relative to library root
	ContentHash [32]byte
	// DefinitionsHash digests the names and types the library attributes to
	// this file. It changes when a duplicate in another file starts or stops
	// shadowing a definition here.
	DefinitionsHash [32]byte
	IsMeta          bool
	MetaName        string
	ModTime         time.Time
	SizeBytes       int64
	ParseError      *string // Nullable
	LastIndexedAt   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Signature represents a stored function signature
type Signature struct {
	ID          int64
	FileID      int64
	Name        string
	View        string // Declaration header
	TypeView    string // Signature as a function type
	Description string
	Line        int
	Column      int
	Documented  bool
	IsMeta      bool
	IsMethod    bool
	IsLocal     bool
	Deprecated  bool
	NoDiscard   bool
	Async       bool
	Params      []Param
	Returns     []Return
	Generics    []Generic
	CreatedAt   time.Time

	// FilePath is filled by reads that join the file row
	FilePath string
}

// Param represents a stored parameter
type Param struct {
	Position    int
	Name        string
	Type        string
	Description string
	Optional    bool
	Documented  bool
	Extraneous  bool
}

// Return represents a stored return value
type Return struct {
	Position    int
	Name        string
	Type        string
	Description string
}

// Generic represents a stored generic declaration
type Generic struct {
	Position   int
	Name       string
	Constraint string // Empty when unconstrained
}

// Alias represents a stored type alias
type Alias struct {
	ID          int64
	FileID      int64
	Name        string
	Type        string
	Description string
	Line        int
	CreatedAt   time.Time

	FilePath string
}

// Diagnostic represents a stored diagnostic
type Diagnostic struct {
	ID        int64
	LibraryID int64
	Severity  string
	Kind      string
	Message   string
	FilePath  string
	Line      int
	Column    int
	// Related is the second location involved, empty when absent
	RelatedPath string
	RelatedLine int
	CreatedAt   time.Time
}

// SignatureFilters narrows signature listings
type SignatureFilters struct {
	FilePath   string // Exact relative path
	Prefix     string // Name prefix, e.g. "string."
	Documented *bool
	Limit      int
}

// DiagnosticFilters narrows diagnostic listings
type DiagnosticFilters struct {
	FilePath    string
	MinSeverity types.Severity // Zero means every severity
	Kinds       []string
	Limit       int
}

// TextResult represents a result from full-text search
type TextResult struct {
	SignatureID int64
	BM25Score   float64
}

// LibraryStatus contains statistics about an indexed library
type LibraryStatus struct {
	Library          *Library
	FilesCount       int
	FailedFilesCount int
	SignaturesCount  int
	AliasesCount     int
	DiagnosticsCount map[string]int // By severity name
	IndexSizeMB      float64
	LastIndexedAt    time.Time
	Health           HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}

// FromSignature converts a parsed signature to its stored form
func FromSignature(sig *types.Signature, fileID int64) *Signature {
	s := &Signature{
		FileID:      fileID,
		Name:        sig.Name,
		View:        sig.View(),
		TypeView:    sig.TypeView(),
		Description: sig.Description,
		Line:        sig.Location.Line,
		Column:      sig.Location.Column,
		Documented:  sig.Documented,
		IsMeta:      sig.IsMeta,
		IsMethod:    sig.IsMethod,
		IsLocal:     sig.IsLocal,
		Deprecated:  sig.Deprecated,
		NoDiscard:   sig.NoDiscard,
		Async:       sig.Async,
		FilePath:    sig.File,
	}
	for i, p := range sig.Params {
		s.Params = append(s.Params, Param{
			Position:    i,
			Name:        p.Name,
			Type:        p.BaseType().String(),
			Description: p.Description,
			Optional:    p.Optional,
			Documented:  p.Documented,
			Extraneous:  p.Extraneous,
		})
	}
	for i, r := range sig.Returns {
		s.Returns = append(s.Returns, Return{
			Position:    i,
			Name:        r.Name,
			Type:        r.Type.String(),
			Description: r.Description,
		})
	}
	for i, g := range sig.Generics {
		gen := Generic{Position: i, Name: g.Name}
		if g.Constraint != nil {
			gen.Constraint = g.Constraint.String()
		}
		s.Generics = append(s.Generics, gen)
	}
	return s
}

// FromAlias converts a parsed alias to its stored form
func FromAlias(a *types.Alias, fileID int64) *Alias {
	return &Alias{
		FileID:      fileID,
		Name:        a.Name,
		Type:        a.Type.String(),
		Description: a.Description,
		Line:        a.Location.Line,
		FilePath:    a.Location.File,
	}
}

// FromDiagnostic converts a diagnostic to its stored form
func FromDiagnostic(d types.Diagnostic, libraryID int64) *Diagnostic {
	sd := &Diagnostic{
		LibraryID: libraryID,
		Severity:  d.Severity.String(),
		Kind:      string(d.Kind),
		Message:   d.Message,
		FilePath:  d.Location.File,
		Line:      d.Location.Line,
		Column:    d.Location.Column,
	}
	if d.Related != nil {
		sd.RelatedPath = d.Related.File
		sd.RelatedLine = d.Related.Line
	}
	return sd
}

// ToTypesDiagnostic converts a stored diagnostic back to types.Diagnostic
func (d *Diagnostic) ToTypesDiagnostic() (types.Diagnostic, error) {
	sev, err := types.ParseSeverity(d.Severity)
	if err != nil {
		return types.Diagnostic{}, err
	}
	td := types.Diagnostic{
		Severity: sev,
		Kind:     types.DiagnosticKind(d.Kind),
		Message:  d.Message,
		Location: types.Location{File: d.FilePath, Line: d.Line, Column: d.Column},
	}
	if d.RelatedPath != "" {
		td.Related = &types.Location{File: d.RelatedPath, Line: d.RelatedLine}
	}
	return td, nil
}

// ToSearchResult converts a stored signature to a search result
func (s *Signature) ToSearchResult(rank int, score float64) types.SearchResult {
	return types.SearchResult{
		SignatureID:    s.ID,
		Rank:           rank,
		RelevanceScore: score,
		Name:           s.Name,
		View:           s.View,
		TypeView:       s.TypeView,
		Description:    s.Description,
		File: &types.FileInfo{
			Path:   s.FilePath,
			Line:   s.Line,
			IsMeta: s.IsMeta,
		},
	}
}
