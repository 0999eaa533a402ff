package library

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/luacats-mcp/internal/parser"
	"github.com/dshills/luacats-mcp/internal/symtab"
	"github.com/dshills/luacats-mcp/internal/validator"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// Options configures a library scan
type Options struct {
	Workers       int           // Number of concurrent parsers (default: runtime.NumCPU())
	Timeout       time.Duration // Wall time cap for the whole scan (default: none)
	Extensions    []string      // File extensions to scan (default: .lua)
	IncludeHidden bool          // Whether to descend into hidden directories (default: false)
	Logger        *slog.Logger  // Logger for scan progress (default: slog.Default())
}

// File is one stub file of a library
type File struct {
	// Path is relative to the library root, slash-separated
	Path     string
	AbsPath  string
	Depth    int
	IsMeta   bool
	MetaName string
	// Hash is the SHA-256 of the file content
	Hash      [32]byte
	SizeBytes int64
	ModTime   time.Time
	// Signatures is the number of signatures the file contributed before
	// duplicate elimination
	Signatures int
	// Err is set when the file could not be read or decoded
	Err error
	// Abandoned is set when the scan ended before the file was parsed
	Abandoned bool

	// SubFiles are the files nested under this one, e.g. a/b.lua under a.lua
	SubFiles []*File
}

// Title returns the file name without its extension
func (f *File) Title() string {
	base := path.Base(f.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileError is a source unit that could not be read or decoded. It is
// fatal for that file only.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Statistics summarizes a scan
type Statistics struct {
	FilesFound     int
	FilesParsed    int
	FilesFailed    int
	FilesAbandoned int
	Signatures     int
	Duration       time.Duration
}

// Library is the merged, validated result of scanning a directory of stub
// files. It is an immutable value: Scan constructs it, and it holds no
// resources, so dropping the last reference tears it down.
type Library struct {
	ID       uuid.UUID
	Root     string
	Complete bool
	Stats    Statistics

	files []*File
	byRel map[string]*File
	roots []*File
	table *symtab.Table
}

// Table returns the library-wide symbol table
func (l *Library) Table() *symtab.Table {
	return l.table
}

// Diagnostics returns every diagnostic raised during the scan
func (l *Library) Diagnostics() types.Diagnostics {
	return l.table.Diagnostics()
}

// Files returns every discovered file, ordered by depth then path
func (l *Library) Files() []*File {
	return slices.Clone(l.files)
}

// Roots returns the top of the file hierarchy. A file a/b.lua is listed
// under a.lua when that file exists, and here otherwise.
func (l *Library) Roots() []*File {
	return slices.Clone(l.roots)
}

// File returns the file with the given relative path
func (l *Library) File(rel string) (*File, bool) {
	f, ok := l.byRel[rel]
	return f, ok
}

// Errors returns the files that failed to parse
func (l *Library) Errors() []*FileError {
	var errs []*FileError
	for _, f := range l.files {
		var fe *FileError
		if errors.As(f.Err, &fe) {
			errs = append(errs, fe)
		}
	}
	return errs
}

// testHookAfterParse is called after each file is parsed
var testHookAfterParse func(rel string)

// unitResult is the outcome of parsing one file
type unitResult struct {
	unit *parser.Unit
	err  error
}

// Scan discovers and parses every stub file under root. Files are parsed
// in parallel and merged in path order, so the result does not depend on
// completion order. When ctx ends or the timeout passes, the files not yet
// parsed are abandoned and the partial library is returned with a
// ScanIncomplete diagnostic. Only failures to access root return an error.
func Scan(ctx context.Context, root string, opts Options) (*Library, error) {
	opts = withDefaults(opts)
	log := opts.Logger
	start := time.Now()

	absRoot, files, err := discover(root, opts)
	if err != nil {
		return nil, err
	}

	lib := &Library{
		ID:    uuid.New(),
		Root:  absRoot,
		files: files,
		byRel: make(map[string]*File, len(files)),
	}
	for _, f := range files {
		lib.byRel[f.Path] = f
	}
	log.Debug("scanning library", "scan_id", lib.ID, "root", absRoot, "files", len(files), "workers", opts.Workers)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// results[i] belongs to order[i]
	order := mergeOrder(files)
	results := parseAll(ctx, order, opts.Workers)

	b := symtab.NewBuilder()
	abandoned := 0
	for i, f := range order {
		res := results[i]
		switch {
		case res == nil:
			f.Abandoned = true
			abandoned++
		case res.err != nil:
			f.Err = &FileError{Path: f.Path, Err: res.err}
			lib.Stats.FilesFailed++
			b.AddDiagnostics(types.Diagnostic{
				Severity: types.SeverityError,
				Kind:     types.FileError,
				Message:  res.err.Error(),
				Location: types.Location{File: f.Path, Line: 1},
			})
			log.Warn("failed to parse file", "scan_id", lib.ID, "path", f.Path, "error", res.err)
		default:
			f.IsMeta = res.unit.IsMeta
			f.MetaName = res.unit.MetaName
			f.Signatures = res.unit.Builder.Len()
			lib.Stats.FilesParsed++
			b.Merge(res.unit.Builder)
		}
	}

	if abandoned > 0 {
		cause := context.Cause(ctx)
		b.AddDiagnostics(types.Diagnostic{
			Severity: types.SeverityWarning,
			Kind:     types.ScanIncomplete,
			Message:  fmt.Sprintf("scan incomplete: %d of %d files abandoned: %v", abandoned, len(files), cause),
			Location: types.Location{File: "."},
		})
		log.Warn("library scan incomplete", "scan_id", lib.ID, "abandoned", abandoned, "files", len(files), "cause", cause)
	}

	b.AddDiagnostics(validator.Validate(b)...)
	lib.table = b.Publish()
	lib.Complete = abandoned == 0
	lib.roots = hierarchy(files, log)

	lib.Stats.FilesFound = len(files)
	lib.Stats.FilesAbandoned = abandoned
	lib.Stats.Signatures = lib.table.Len()
	lib.Stats.Duration = time.Since(start)

	log.Info("library scanned",
		"scan_id", lib.ID,
		"root", absRoot,
		"files", lib.Stats.FilesParsed,
		"failed", lib.Stats.FilesFailed,
		"signatures", lib.Stats.Signatures,
		"diagnostics", len(lib.table.Diagnostics()),
		"duration", lib.Stats.Duration)

	return lib, nil
}

func withDefaults(opts Options) Options {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".lua"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

// parseAll parses files concurrently. A nil entry means the file was
// abandoned because ctx ended first.
func parseAll(ctx context.Context, files []*File, workers int) []*unitResult {
	results := make([]*unitResult, len(files))
	semaphore := make(chan struct{}, workers)
	p := parser.New()

	var g errgroup.Group
	var stopped atomic.Bool
	for i, f := range files {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			if stopped.Load() || ctx.Err() != nil {
				stopped.Store(true)
				return nil
			}
			results[i] = parseFile(p, f)
			if testHookAfterParse != nil {
				testHookAfterParse(f.Path)
			}
			return nil
		})
	}
	// per-file failures are recorded in results, never returned
	_ = g.Wait()
	return results
}

func parseFile(p *parser.Parser, f *File) *unitResult {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return &unitResult{err: fmt.Errorf("failed to read file: %w", err)}
	}
	f.Hash = sha256.Sum256(content)

	unit, err := p.Build(f.Path, content)
	if err != nil {
		return &unitResult{err: err}
	}
	return &unitResult{unit: unit}
}

// RootOf returns the absolute library root a scan of path uses: path itself
// for a directory, its parent directory for a single stub file
func RootOf(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to access root: %w", err)
	}
	if !info.IsDir() {
		return filepath.Dir(abs), nil
	}
	return abs, nil
}

// discover lists the stub files under root. A root naming a single file
// yields a library of that one file.
func discover(root string, opts Options) (string, []*File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", nil, fmt.Errorf("failed to access root: %w", err)
	}

	var files []*File
	add := func(abs string, info fs.FileInfo) {
		rel, _ := filepath.Rel(absRoot, abs)
		rel = filepath.ToSlash(rel)
		files = append(files, &File{
			Path:      rel,
			AbsPath:   abs,
			Depth:     strings.Count(rel, "/"),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}

	if !info.IsDir() {
		if !hasExtension(absRoot, opts.Extensions) {
			return "", nil, fmt.Errorf("%s is not a stub file", root)
		}
		dir := filepath.Dir(absRoot)
		absRoot, files = dir, nil
		add(filepath.Join(dir, info.Name()), info)
		return absRoot, files, nil
	}

	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != absRoot && !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(p, opts.Extensions) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		add(p, info)
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to discover files: %w", err)
	}

	slices.SortFunc(files, func(a, b *File) int {
		if a.Depth != b.Depth {
			return a.Depth - b.Depth
		}
		return strings.Compare(a.Path, b.Path)
	})
	return absRoot, files, nil
}

// mergeOrder returns files sorted by relative path, the order in which
// first definitions win
func mergeOrder(files []*File) []*File {
	order := slices.Clone(files)
	slices.SortFunc(order, func(a, b *File) int {
		return strings.Compare(a.Path, b.Path)
	})
	return order
}

func hasExtension(p string, exts []string) bool {
	ext := filepath.Ext(p)
	return slices.Contains(exts, ext)
}

// hierarchy nests every file under the file named after its directory,
// e.g. a/b.lua under a.lua. files must be ordered by depth.
func hierarchy(files []*File, log *slog.Logger) []*File {
	byStem := make(map[string]*File, len(files))
	var roots []*File
	for _, f := range files {
		f.SubFiles = nil
		stem := strings.TrimSuffix(f.Path, path.Ext(f.Path))
		byStem[stem] = f

		if f.Depth == 0 {
			roots = append(roots, f)
			continue
		}
		if parent, ok := byStem[path.Dir(f.Path)]; ok {
			parent.SubFiles = append(parent.SubFiles, f)
			continue
		}
		log.Warn("no parent file for nested file, listing it at the top level", "path", f.Path)
		roots = append(roots, f)
	}
	return roots
}
