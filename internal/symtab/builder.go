package symtab

import (
	"iter"
	"slices"

	"github.com/dshills/luacats-mcp/internal/assembler"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// Builder accumulates signatures for one scope (a file or a library).
// The first definition of a name wins; later ones are reported.
// A Builder is not safe for concurrent use.
type Builder struct {
	sigs       []*types.Signature
	index      map[string]int
	aliases    []*types.Alias
	aliasIndex map[string]int
	orphans    []*types.AnnotationBlock
	diags      types.Diagnostics
}

// NewBuilder creates an empty Builder
func NewBuilder() *Builder {
	return &Builder{
		index:      make(map[string]int),
		aliasIndex: make(map[string]int),
	}
}

// AddResult converts the pairs of an assembled source unit into
// signatures. Types synthesized for undocumented parameters are allocated
// from arena.
func (b *Builder) AddResult(res *assembler.Result, arena *types.Arena) {
	b.diags = append(b.diags, res.Diagnostics...)
	for _, tag := range res.Aliases {
		b.AddAlias(&types.Alias{
			Name:        tag.Name,
			Type:        tag.Type,
			Description: tag.Description,
			Location:    tag.Location,
		})
	}
	b.orphans = append(b.orphans, res.Orphans...)
	for _, p := range res.Pairs {
		b.Add(b.signature(res, p, arena))
	}
}

// Add appends a signature. It returns false and records a
// DuplicateSymbolError when the name is already taken.
func (b *Builder) Add(sig *types.Signature) bool {
	if i, ok := b.index[sig.Name]; ok {
		first := b.sigs[i].Location
		b.diags = append(b.diags, types.Diagnostic{
			Severity: types.SeverityWarning,
			Kind:     types.DuplicateSymbolError,
			Message:  "duplicate definition of " + sig.Name,
			Location: sig.Location,
			Related:  &first,
		})
		return false
	}
	b.index[sig.Name] = len(b.sigs)
	b.sigs = append(b.sigs, sig)
	return true
}

// AddAlias appends an alias under the same first-wins policy as Add
func (b *Builder) AddAlias(alias *types.Alias) bool {
	if i, ok := b.aliasIndex[alias.Name]; ok {
		first := b.aliases[i].Location
		b.diags = append(b.diags, types.Diagnostic{
			Severity: types.SeverityWarning,
			Kind:     types.DuplicateSymbolError,
			Message:  "duplicate definition of alias " + alias.Name,
			Location: alias.Location,
			Related:  &first,
		})
		return false
	}
	b.aliasIndex[alias.Name] = len(b.aliases)
	b.aliases = append(b.aliases, alias)
	return true
}

// AddDiagnostics appends diagnostics raised outside the builder
func (b *Builder) AddDiagnostics(diags ...types.Diagnostic) {
	b.diags = append(b.diags, diags...)
}

// Merge moves everything from other into b, in other's order. Names that
// collide with ones already in b are reported as duplicates. other must
// not be used afterwards.
func (b *Builder) Merge(other *Builder) {
	b.diags = append(b.diags, other.diags...)
	for _, a := range other.aliases {
		b.AddAlias(a)
	}
	b.orphans = append(b.orphans, other.orphans...)
	for _, s := range other.sigs {
		b.Add(s)
	}
	*other = Builder{}
}

// Signatures returns the signatures added so far, in insertion order
func (b *Builder) Signatures() iter.Seq[*types.Signature] {
	return slices.Values(b.sigs)
}

// Aliases returns the aliases added so far, in insertion order
func (b *Builder) Aliases() iter.Seq[*types.Alias] {
	return slices.Values(b.aliases)
}

// LookupAlias returns the alias with the given name
func (b *Builder) LookupAlias(name string) (*types.Alias, bool) {
	i, ok := b.aliasIndex[name]
	if !ok {
		return nil, false
	}
	return b.aliases[i], true
}

// Len returns the number of signatures added so far
func (b *Builder) Len() int {
	return len(b.sigs)
}

// Publish freezes the accumulated content into a Table. The Builder is
// reset and keeps no reference to the published data.
func (b *Builder) Publish() *Table {
	t := &Table{
		sigs:       b.sigs,
		index:      b.index,
		aliases:    b.aliases,
		aliasIndex: b.aliasIndex,
		orphans:    b.orphans,
		diags:      b.diags,
		funcs:      make([]*types.TypeExpr, len(b.sigs)),
	}
	for i, sig := range t.sigs {
		t.funcs[i] = functionType(sig)
	}
	*b = *NewBuilder()
	return t
}

func (b *Builder) signature(res *assembler.Result, p assembler.Pair, arena *types.Arena) *types.Signature {
	decl := p.Declaration
	sig := &types.Signature{
		Name:        decl.Name,
		File:        res.File,
		IsMeta:      res.IsMeta,
		IsMethod:    decl.IsMethod,
		IsLocal:     decl.IsLocal,
		Location:    decl.Location,
		Declaration: *decl,
	}

	blk := p.Block
	if blk == nil {
		return sig
	}

	sig.Documented = true
	sig.IsMeta = res.IsMeta || blk.IsMeta
	sig.Description = blk.Description
	sig.Generics = slices.Clone(blk.Generics)
	sig.Deprecated = blk.Deprecated
	sig.NoDiscard = blk.NoDiscard
	sig.Async = blk.Async
	sig.Params = b.reconcile(decl, blk.Params, arena)
	for _, r := range blk.Returns {
		sig.Returns = append(sig.Returns, types.Return{
			Type:        r.Type,
			Description: r.Description,
			Name:        r.Name,
		})
	}
	return sig
}

// reconcile matches param tags to the declared parameter names. For each
// declared name, in order: the tag at the same position if its name agrees,
// else the tag with that name anywhere, else the tag at the same position
// if it names no other declared parameter. Unmatched declared names are
// untyped; unmatched tags are kept as extraneous.
func (b *Builder) reconcile(decl *types.Declaration, tags []types.ParamTag, arena *types.Arena) []types.Param {
	tags = b.uniqueTags(tags)
	if decl.IsMethod && len(tags) > 0 && tags[0].Name == "self" && !slices.Contains(decl.ParamNames, "self") {
		tags = tags[1:]
	}

	used := make([]bool, len(tags))
	find := func(name string) int {
		for j, tag := range tags {
			if !used[j] && tag.Name == name {
				return j
			}
		}
		return -1
	}

	params := make([]types.Param, 0, len(decl.ParamNames))
	for i, name := range decl.ParamNames {
		j := -1
		switch {
		case i < len(tags) && !used[i] && tags[i].Name == name:
			j = i
		case find(name) >= 0:
			j = find(name)
			b.diags.Add(types.SeverityInfo, types.ParamMismatch, tags[j].Location,
				"param %s of %s is documented at position %d but declared at position %d",
				name, decl.Name, j+1, i+1)
		case i < len(tags) && !used[i] && !slices.Contains(decl.ParamNames, tags[i].Name):
			j = i
			b.diags.Add(types.SeverityWarning, types.ParamMismatch, tags[i].Location,
				"param tag %q does not match declared parameter %q of %s at index %d",
				tags[i].Name, name, decl.Name, i)
		}

		if j < 0 {
			b.diags.Add(types.SeverityWarning, types.MissingParam, decl.Location,
				"param %s of %s is not documented", name, decl.Name)
			params = append(params, types.Param{Name: name, Type: arena.Unknown("")})
			continue
		}

		used[j] = true
		tag := tags[j]
		params = append(params, types.Param{
			Name:        name,
			Type:        tag.Type,
			Description: tag.Description,
			Optional:    tag.Optional,
			Documented:  true,
		})
	}

	for j, tag := range tags {
		if used[j] {
			continue
		}
		b.diags.Add(types.SeverityWarning, types.ExtraneousParam, tag.Location,
			"param tag %s does not match any parameter of %s", tag.Name, decl.Name)
		params = append(params, types.Param{
			Name:        tag.Name,
			Type:        tag.Type,
			Description: tag.Description,
			Optional:    tag.Optional,
			Documented:  true,
			Extraneous:  true,
		})
	}
	return params
}

// uniqueTags drops repeated param tag names, keeping the first
func (b *Builder) uniqueTags(tags []types.ParamTag) []types.ParamTag {
	seen := make(map[string]bool, len(tags))
	out := make([]types.ParamTag, 0, len(tags))
	for _, tag := range tags {
		if seen[tag.Name] {
			b.diags.Add(types.SeverityWarning, types.DuplicateParam, tag.Location,
				"param %s is documented more than once", tag.Name)
			continue
		}
		seen[tag.Name] = true
		out = append(out, tag)
	}
	return out
}

// functionType renders a signature as a function type node
func functionType(sig *types.Signature) *types.TypeExpr {
	fn := &types.TypeExpr{ID: -1, Kind: types.TypeFunction}
	for _, p := range sig.Params {
		if p.Extraneous {
			continue
		}
		fp := types.FuncParam{Name: p.Name, Optional: p.Optional}
		if p.Documented {
			fp.Type = p.BaseType()
		}
		fn.Params = append(fn.Params, fp)
	}
	for _, r := range sig.Returns {
		fn.Returns = append(fn.Returns, r.Type)
	}
	return fn
}
