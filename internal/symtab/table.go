package symtab

import (
	"iter"
	"slices"

	"github.com/dshills/luacats-mcp/pkg/types"
)

// Table is a published, immutable symbol table. It is safe for concurrent
// readers. Values it hands out are shared and must not be modified.
type Table struct {
	sigs       []*types.Signature
	index      map[string]int
	aliases    []*types.Alias
	aliasIndex map[string]int
	orphans    []*types.AnnotationBlock
	diags      types.Diagnostics
	// funcs[i] is the function type of sigs[i]
	funcs []*types.TypeExpr
}

// Lookup returns the signature with the given name. Absence is not an error.
func (t *Table) Lookup(name string) (*types.Signature, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.sigs[i], true
}

// Type returns the function type of the named signature, e.g.
// fun(name: string): boolean
func (t *Table) Type(name string) (*types.TypeExpr, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.funcs[i], true
}

// All returns every signature in insertion order. The sequence can be
// iterated any number of times.
func (t *Table) All() iter.Seq[*types.Signature] {
	return slices.Values(t.sigs)
}

// Len returns the number of signatures
func (t *Table) Len() int {
	return len(t.sigs)
}

// Names returns the signature names in insertion order
func (t *Table) Names() []string {
	names := make([]string, len(t.sigs))
	for i, s := range t.sigs {
		names[i] = s.Name
	}
	return names
}

// InFile returns the signatures defined in the given file, in order
func (t *Table) InFile(file string) iter.Seq[*types.Signature] {
	return func(yield func(*types.Signature) bool) {
		for _, s := range t.sigs {
			if s.File == file && !yield(s) {
				return
			}
		}
	}
}

// LookupAlias returns the alias with the given name
func (t *Table) LookupAlias(name string) (*types.Alias, bool) {
	i, ok := t.aliasIndex[name]
	if !ok {
		return nil, false
	}
	return t.aliases[i], true
}

// Aliases returns every alias in insertion order
func (t *Table) Aliases() iter.Seq[*types.Alias] {
	return slices.Values(t.aliases)
}

// Orphans returns the annotation blocks that documented no declaration
func (t *Table) Orphans() []*types.AnnotationBlock {
	return slices.Clone(t.orphans)
}

// Diagnostics returns the diagnostics accumulated by every stage, in the
// order they were raised
func (t *Table) Diagnostics() types.Diagnostics {
	return slices.Clone(t.diags)
}
