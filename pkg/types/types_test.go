package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func union(a *Arena, alts ...*TypeExpr) *TypeExpr {
	u := a.New(TypeUnion)
	u.Alternatives = alts
	return u
}

func optional(a *Arena, inner *TypeExpr) *TypeExpr {
	o := a.New(TypeOptional)
	o.Inner = inner
	return o
}

func TestArena(t *testing.T) {
	a := NewArena()
	s := a.Primitive("string")
	u := a.Unknown("<<")
	assert.Equal(t, 0, s.ID)
	assert.Equal(t, 1, u.ID)
	assert.Equal(t, 2, a.Len())
	assert.Same(t, u, a.Node(1))
	assert.Nil(t, a.Node(2))
	assert.Nil(t, a.Node(-1))

	var nilArena *Arena
	n := nilArena.Primitive("number")
	assert.Equal(t, -1, n.ID)
	assert.Equal(t, 0, nilArena.Len())
}

func TestWalk_Cycle(t *testing.T) {
	a := NewArena()
	// ---@alias Node { next: Node? }
	ref := a.Primitive("Node")
	rec := a.New(TypeRecord)
	rec.Fields = []Field{{Name: "next", Type: optional(a, ref)}}
	ref.Target = rec

	visited := 0
	Walk(rec, func(*TypeExpr) bool { visited++; return true })
	assert.Equal(t, 3, visited, "record, optional, reference")

	visited = 0
	WalkResolved(ref, func(*TypeExpr) bool { visited++; return true })
	assert.Equal(t, 3, visited, "each node once through the cycle")

	visited = 0
	Walk(rec, func(*TypeExpr) bool { visited++; return false })
	assert.Equal(t, 1, visited, "stops early")
}

func TestEqual(t *testing.T) {
	a := NewArena()
	str, num, nilT := a.Primitive("string"), a.Primitive("number"), a.Primitive("nil")

	assert.True(t, Equal(union(a, str, num), union(a, num, str)), "unions compare as sets")
	assert.True(t, Equal(optional(a, str), union(a, str, nilT)), "optional is a union with nil")
	assert.False(t, Equal(str, num))
	assert.False(t, Equal(str, nil))
	assert.True(t, Equal(nil, nil))

	arr1, arr2 := a.New(TypeArray), a.New(TypeArray)
	arr1.Inner, arr2.Inner = str, a.Primitive("string")
	assert.True(t, Equal(arr1, arr2), "IDs are ignored")

	fn1, fn2 := a.New(TypeFunction), a.New(TypeFunction)
	fn1.Params = []FuncParam{{Name: "x", Type: num}}
	fn2.Params = []FuncParam{{Name: "y", Type: num}}
	assert.False(t, Equal(fn1, fn2), "param names matter")
}

func TestTypeExpr_String(t *testing.T) {
	a := NewArena()
	str, num := a.Primitive("string"), a.Primitive("number")

	tbl := a.New(TypeTable)
	tbl.Key, tbl.Value = str, num

	fn := a.New(TypeFunction)
	fn.Params = []FuncParam{{Name: "a", Type: str}, {Name: "b", Optional: true}}
	fn.Returns = []*TypeExpr{num, str}

	arr := a.New(TypeArray)
	arr.Inner = union(a, str, num)

	tests := []struct {
		expr *TypeExpr
		want string
	}{
		{str, "string"},
		{optional(a, str), "string?"},
		{union(a, str, num), "string|number"},
		{tbl, "table<string, number>"},
		{fn, "fun(a: string, b?): (number, string)"},
		{arr, "(string|number)[]"},
		{nil, "any"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.expr.String())
	}
}

func TestIsNilable(t *testing.T) {
	a := NewArena()
	assert.True(t, optional(a, a.Primitive("string")).IsNilable())
	assert.True(t, union(a, a.Primitive("string"), a.Primitive("nil")).IsNilable())
	assert.True(t, a.Primitive("any").IsNilable())
	assert.False(t, a.Primitive("string").IsNilable())
	assert.False(t, (*TypeExpr)(nil).IsNilable())
}

func TestSignature_Validate(t *testing.T) {
	a := NewArena()
	valid := func() *Signature {
		return &Signature{
			Name:       "greet",
			Documented: true,
			Location:   Location{File: "a.lua", Line: 1},
			Params:     []Param{{Name: "name", Type: a.Primitive("string"), Documented: true}},
			Declaration: Declaration{
				Name:       "greet",
				ParamNames: []string{"name"},
			},
		}
	}
	require.NoError(t, valid().Validate())

	sig := valid()
	sig.Name = ""
	assert.ErrorIs(t, sig.Validate(), ErrEmptyName)

	sig = valid()
	sig.Location.Line = 0
	assert.ErrorIs(t, sig.Validate(), ErrInvalidLocation)

	sig = valid()
	sig.Params[0].Type = nil
	assert.ErrorIs(t, sig.Validate(), ErrNilType)

	sig = valid()
	sig.Params = append(sig.Params, sig.Params[0])
	assert.ErrorIs(t, sig.Validate(), ErrDuplicateParam)

	// an extraneous tag may repeat a name
	sig = valid()
	extra := sig.Params[0]
	extra.Extraneous = true
	sig.Params = append(sig.Params, extra)
	assert.NoError(t, sig.Validate())

	sig = valid()
	sig.Declaration.ParamNames = nil
	assert.Error(t, sig.Validate())
}

func TestSignature_Views(t *testing.T) {
	a := NewArena()
	sig := &Signature{
		Name: "M.find",
		Params: []Param{
			{Name: "s", Type: a.Primitive("string"), Documented: true},
			{Name: "init", Type: optional(a, a.Primitive("integer")), Optional: true, Documented: true},
			{Name: "plain"},
			{Name: "ghost", Type: a.Primitive("any"), Documented: true, Extraneous: true},
		},
		Returns:     []Return{{Type: a.Primitive("integer")}, {Type: a.Primitive("integer")}},
		Declaration: Declaration{Name: "M.find", ParamNames: []string{"s", "init", "plain"}, IsLocal: true},
	}

	assert.Equal(t, "local function M.find(s, init, plain)", sig.View())
	assert.Equal(t, "fun(s: string, init?: integer, plain): integer, integer", sig.TypeView())
	assert.Len(t, sig.DeclaredParams(), 3)

	p, ok := sig.Param("init")
	require.True(t, ok)
	assert.Equal(t, "integer", p.BaseType().String())
	_, ok = sig.Param("missing")
	assert.False(t, ok)
}

func TestParseSeverity(t *testing.T) {
	for _, sev := range []Severity{SeverityError, SeverityWarning, SeverityInfo, SeverityHint} {
		got, err := ParseSeverity(sev.String())
		require.NoError(t, err)
		assert.Equal(t, sev, got)
	}

	_, err := ParseSeverity("fatal")
	assert.ErrorIs(t, err, ErrInvalidSeverity)
	assert.Equal(t, "unknown", Severity(0).String())
}

func TestDiagnostics(t *testing.T) {
	var ds Diagnostics
	ds.Add(SeverityWarning, ParamMismatch, Location{File: "a.lua", Line: 2}, "param %q", "nam")
	ds.Add(SeverityInfo, ReturnArity, Location{File: "a.lua", Line: 5, Column: 3}, "two returns")
	assert.False(t, ds.HasErrors())
	assert.Equal(t, 1, ds.Count(ParamMismatch))
	assert.Len(t, ds.AtLeast(SeverityWarning), 1)
	assert.Len(t, ds.AtLeast(SeverityHint), 2)

	assert.Equal(t, `a.lua:2: warning: param "nam" [param_mismatch]`, ds[0].String())
	assert.Equal(t, "a.lua:5:3: info: two returns [return_arity]", ds[1].String())

	ds.Add(SeverityError, DuplicateSymbolError, Location{File: "b.lua", Line: 1}, "duplicate")
	ds[2].Related = &Location{File: "a.lua", Line: 1}
	assert.True(t, ds.HasErrors())
	assert.Equal(t, "b.lua:1: error: duplicate [duplicate_symbol] (see a.lua:1)", ds[2].Error())

	var err error = ds[2]
	var d Diagnostic
	assert.True(t, errors.As(err, &d))
}

func TestSearchResult_Validate(t *testing.T) {
	valid := func() SearchResult {
		return SearchResult{SignatureID: 1, Rank: 1, RelevanceScore: 0.5, Name: "a", File: &FileInfo{Path: "a.lua"}}
	}
	r := valid()
	require.NoError(t, r.Validate())

	r = valid()
	r.SignatureID = 0
	assert.ErrorIs(t, r.Validate(), ErrInvalidSignatureID)

	r = valid()
	r.Rank = 0
	assert.ErrorIs(t, r.Validate(), ErrInvalidRank)

	r = valid()
	r.RelevanceScore = 1.5
	assert.ErrorIs(t, r.Validate(), ErrInvalidRelevanceScore)

	r = valid()
	r.File = nil
	assert.ErrorIs(t, r.Validate(), ErrMissingFileInfo)

	r = valid()
	r.Name = ""
	assert.ErrorIs(t, r.Validate(), ErrEmptyName)
}

func TestAnnotationBlock(t *testing.T) {
	meta := &AnnotationBlock{IsMeta: true}
	assert.True(t, meta.IsFileLevel())

	withParam := &AnnotationBlock{IsMeta: true, Params: []ParamTag{{Name: "x"}}}
	assert.False(t, withParam.IsFileLevel())

	plain := &AnnotationBlock{Description: "doc"}
	assert.False(t, plain.IsFileLevel())

	p, ok := withParam.Param("x")
	require.True(t, ok)
	assert.Equal(t, "x", p.Name)
	assert.True(t, IsBuiltin("lightuserdata"))
	assert.False(t, IsBuiltin("Buffer"))
}
