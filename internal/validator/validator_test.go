package validator

import (
	"testing"

	"github.com/dshills/luacats-mcp/internal/assembler"
	"github.com/dshills/luacats-mcp/internal/lexer"
	"github.com/dshills/luacats-mcp/internal/symtab"
	"github.com/dshills/luacats-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builder(t *testing.T, src string) *symtab.Builder {
	t.Helper()
	arena := types.NewArena()
	res := assembler.Assemble("test.lua", lexer.New("test.lua", src, arena).Lines())
	b := symtab.NewBuilder()
	b.AddResult(res, arena)
	return b
}

func TestValidate_ResolvedGeneric(t *testing.T) {
	b := builder(t, "---@generic T: table\n---@param list T[]\n---@return T\nfunction first(list) end")
	diags := Validate(b)
	assert.Empty(t, diags)

	tbl := b.Publish()
	sig, _ := tbl.Lookup("first")
	ret := sig.Returns[0].Type
	assert.Equal(t, types.TypeGeneric, ret.Kind)
	require.NotNil(t, ret.Constraint)
	assert.Equal(t, "table", ret.Constraint.Name)
}

func TestValidate_UnresolvedCapture(t *testing.T) {
	b := builder(t, "---@param kind `K`\nfunction make(kind) end")
	diags := Validate(b)

	require.Len(t, diags, 1)
	assert.Equal(t, types.UnresolvedGenericError, diags[0].Kind)
	assert.Equal(t, 2, diags[0].Location.Line)

	tbl := b.Publish()
	sig, _ := tbl.Lookup("make")
	assert.True(t, sig.Params[0].Type.IsUnknown())
	assert.Equal(t, "K", sig.Params[0].Type.Name)
}

func TestValidate_GenericFromOtherSignature(t *testing.T) {
	arena := types.NewArena()
	g := arena.New(types.TypeGeneric)
	g.Name = "T"

	b := symtab.NewBuilder()
	b.Add(&types.Signature{
		Name:       "f",
		Documented: true,
		Location:   types.Location{File: "x.lua", Line: 3},
		Params:     []types.Param{{Name: "x", Type: g, Documented: true}},
		Declaration: types.Declaration{
			Name:       "f",
			ParamNames: []string{"x"},
		},
	})

	diags := Validate(b)
	require.Len(t, diags, 1)
	assert.Equal(t, types.UnresolvedGenericError, diags[0].Kind)
	assert.True(t, g.IsUnknown())
}

func TestValidate_AliasLinks(t *testing.T) {
	src := `---@alias Mode "r"|"w"

---@param mode Mode
function open(mode) end
`
	b := builder(t, src)
	assert.Empty(t, Validate(b))

	tbl := b.Publish()
	sig, _ := tbl.Lookup("open")
	mode := sig.Params[0].Type
	alias, _ := tbl.LookupAlias("Mode")
	assert.Same(t, alias.Type, mode.Target)
}

func TestValidate_RecursiveAlias(t *testing.T) {
	src := `---@alias Node { value: integer, next: Node? }

---@param head Node
---@return integer
function length(head) end
`
	b := builder(t, src)
	assert.Empty(t, Validate(b))
	tbl := b.Publish()

	alias, _ := tbl.LookupAlias("Node")
	next := alias.Type.Fields[1].Type.Inner
	require.Equal(t, types.TypePrimitive, next.Kind)
	assert.Same(t, alias.Type, next.Target)

	// a resolved walk over the cycle terminates and visits each node once
	sig, _ := tbl.Lookup("length")
	visits := make(map[*types.TypeExpr]int)
	types.WalkResolved(sig.Params[0].Type, func(n *types.TypeExpr) bool {
		visits[n]++
		return true
	})
	assert.Len(t, visits, 5)
	for _, n := range visits {
		assert.Equal(t, 1, n)
	}
}

func TestValidate_MutuallyRecursiveAliases(t *testing.T) {
	b := builder(t, "---@alias A B[]\n---@alias B A|string\n")
	assert.Empty(t, Validate(b))
	tbl := b.Publish()

	a, _ := tbl.LookupAlias("A")
	bAlias, _ := tbl.LookupAlias("B")
	assert.Same(t, bAlias.Type, a.Type.Inner.Target)
	assert.Same(t, a.Type, bAlias.Type.Alternatives[0].Target)

	count := 0
	types.WalkResolved(a.Type, func(*types.TypeExpr) bool {
		count++
		return true
	})
	assert.Equal(t, 5, count)
}

func TestValidate_BuiltinsAreNotLinked(t *testing.T) {
	b := builder(t, "---@alias string integer\n\n---@param s string\nfunction f(s) end")
	Validate(b)
	tbl := b.Publish()
	sig, _ := tbl.Lookup("f")
	assert.Nil(t, sig.Params[0].Type.Target)
}

func TestValidate_ReturnArity(t *testing.T) {
	b := builder(t, "---@nodiscard\nfunction f() end\n---@return ...string\n---@return integer\nfunction g() end")
	diags := Validate(b)
	assert.Equal(t, 2, diags.Count(types.ReturnArity))
	for _, d := range diags {
		assert.Equal(t, types.SeverityInfo, d.Severity)
	}
}
