package parser

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/dshills/luacats-mcp/internal/assembler"
	"github.com/dshills/luacats-mcp/internal/lexer"
	"github.com/dshills/luacats-mcp/internal/symtab"
	"github.com/dshills/luacats-mcp/internal/validator"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// Parser runs the annotation pipeline over LuaCATS source units:
// lexer, assembler, symbol table builder, validator.
// A Parser holds no per-file state and may be shared between goroutines.
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// Unit is one source unit taken through every stage but validation and
// publication, ready to be merged into a larger scope
type Unit struct {
	File     string
	IsMeta   bool
	MetaName string
	Builder  *symtab.Builder
}

// Result is a fully parsed and published source unit
type Result struct {
	File     string
	IsMeta   bool
	MetaName string
	Table    *symtab.Table
}

// Diagnostics returns the diagnostics of every stage
func (r *Result) Diagnostics() types.Diagnostics {
	return r.Table.Diagnostics()
}

// HasErrors returns true if any diagnostic is of error severity
func (r *Result) HasErrors() bool {
	return r.Table.Diagnostics().HasErrors()
}

// ParseFile reads and parses a stub file. Annotation problems are reported
// as diagnostics; only unreadable or undecodable input returns an error.
func (p *Parser) ParseFile(filePath string) (*Result, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseSource(filePath, content)
}

// ParseSource parses src, reporting locations under name
func (p *Parser) ParseSource(name string, src []byte) (*Result, error) {
	unit, err := p.Build(name, src)
	if err != nil {
		return nil, err
	}

	unit.Builder.AddDiagnostics(validator.Validate(unit.Builder)...)

	return &Result{
		File:     unit.File,
		IsMeta:   unit.IsMeta,
		MetaName: unit.MetaName,
		Table:    unit.Builder.Publish(),
	}, nil
}

// Build takes src through lexing, assembly and signature construction.
// The returned Unit is unvalidated so it can be merged with sibling units
// and validated once as a whole.
func (p *Parser) Build(name string, src []byte) (*Unit, error) {
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%s: %w", name, types.ErrInvalidUTF8)
	}

	arena := types.NewArena()
	res := assembler.Assemble(name, lexer.New(name, string(src), arena).Lines())

	b := symtab.NewBuilder()
	b.AddResult(res, arena)

	return &Unit{
		File:     name,
		IsMeta:   res.IsMeta,
		MetaName: res.MetaName,
		Builder:  b,
	}, nil
}
