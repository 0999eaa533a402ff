package assembler

import (
	"iter"
	"strings"

	"github.com/dshills/luacats-mcp/internal/lexer"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// Pair is an annotation block with the declaration that immediately
// follows it. Block is nil for an undocumented declaration.
type Pair struct {
	Block       *types.AnnotationBlock
	Declaration *types.Declaration
}

// Documented returns true if the declaration has a block
func (p Pair) Documented() bool {
	return p.Block != nil
}

// Result is the assembled content of one source unit
type Result struct {
	File string
	// IsMeta is set when any meta tag appears in the file
	IsMeta   bool
	MetaName string

	Pairs []Pair
	// Orphans are blocks documenting nothing, kept for their description
	Orphans []*types.AnnotationBlock
	// Aliases are collected from every block, paired or not
	Aliases []types.AliasTag

	Diagnostics types.Diagnostics
}

// Assembler groups classified lines into blocks and pairs them with
// declarations
type Assembler struct {
	result *Result
	block  *types.AnnotationBlock
	desc   []string
}

// Assemble consumes lines in order and returns the assembled result
func Assemble(file string, lines iter.Seq[lexer.Line]) *Result {
	a := &Assembler{result: &Result{File: file}}
	for line := range lines {
		a.add(line)
	}
	a.close()
	return a.result
}

func (a *Assembler) add(line lexer.Line) {
	a.result.Diagnostics = append(a.result.Diagnostics, line.Diagnostics...)

	switch line.Kind {
	case lexer.BlankLine, lexer.OtherLine:
		a.close()
		return
	case lexer.DeclarationLine:
		a.pair(line.Declaration)
		return
	}

	b := a.current(line.Location)
	b.End = line.Location

	switch line.Kind {
	case lexer.MetaLine:
		b.IsMeta = true
		if b.MetaName == "" {
			b.MetaName = line.MetaName
		}
		if !a.result.IsMeta {
			a.result.IsMeta = true
			a.result.MetaName = line.MetaName
		}
	case lexer.ParamLine:
		b.Params = append(b.Params, *line.Param)
	case lexer.ReturnLine:
		b.Returns = append(b.Returns, *line.Return)
	case lexer.GenericLine:
		b.Generics = append(b.Generics, line.Generics...)
	case lexer.AliasLine:
		b.Aliases = append(b.Aliases, *line.Alias)
		a.result.Aliases = append(a.result.Aliases, *line.Alias)
	case lexer.FlagLine:
		switch line.Flag {
		case lexer.FlagDeprecated:
			b.Deprecated = true
		case lexer.FlagNoDiscard:
			b.NoDiscard = true
		case lexer.FlagAsync:
			b.Async = true
		}
	case lexer.DescriptionLine:
		a.desc = append(a.desc, line.Description)
	}
}

// current returns the open block, starting one at loc if needed
func (a *Assembler) current(loc types.Location) *types.AnnotationBlock {
	if a.block == nil {
		a.block = &types.AnnotationBlock{Start: loc, End: loc}
		a.desc = a.desc[:0]
	}
	return a.block
}

// finish completes the open block and detaches it
func (a *Assembler) finish() *types.AnnotationBlock {
	b := a.block
	if b == nil {
		return nil
	}
	b.Description = joinDescription(a.desc)
	a.block = nil
	a.desc = a.desc[:0]
	return b
}

func (a *Assembler) pair(decl *types.Declaration) {
	b := a.finish()
	if b == nil {
		a.result.Diagnostics.Add(types.SeverityInfo, types.PairingError, decl.Location,
			"function %s has no annotation block", decl.Name)
	}
	a.result.Pairs = append(a.result.Pairs, Pair{Block: b, Declaration: decl})
}

// close ends the open block without a declaration
func (a *Assembler) close() {
	b := a.finish()
	if b == nil || b.IsFileLevel() {
		return
	}
	a.result.Orphans = append(a.result.Orphans, b)
	a.result.Diagnostics.Add(types.SeverityWarning, types.PairingError, b.Start,
		"annotation block is not followed by a declaration")
}

// joinDescription joins description lines, dropping leading and trailing
// empty lines
func joinDescription(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
