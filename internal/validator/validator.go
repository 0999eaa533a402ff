package validator

import (
	"iter"

	"github.com/dshills/luacats-mcp/pkg/types"
)

// Source is the content of a symbol table under construction
type Source interface {
	Signatures() iter.Seq[*types.Signature]
	Aliases() iter.Seq[*types.Alias]
	LookupAlias(name string) (*types.Alias, bool)
}

// Validate cross-checks every signature once all symbols are known. It
// resolves generic references against each signature's own generics,
// degrading unresolved ones to Unknown, and links named references to
// alias definitions. Type nodes are finalized in place, so Validate must
// run before the table is published.
func Validate(src Source) types.Diagnostics {
	var diags types.Diagnostics

	for alias := range src.Aliases() {
		linkAliases(src, alias.Type)
	}

	for sig := range src.Signatures() {
		for _, root := range signatureTypes(sig) {
			resolveGenerics(sig, root, &diags)
			linkAliases(src, root)
		}
		checkReturns(sig, &diags)
	}
	return diags
}

// signatureTypes returns the roots of every type tree a signature owns
func signatureTypes(sig *types.Signature) []*types.TypeExpr {
	var roots []*types.TypeExpr
	for _, p := range sig.Params {
		roots = append(roots, p.Type)
	}
	for _, r := range sig.Returns {
		roots = append(roots, r.Type)
	}
	for _, g := range sig.Generics {
		if g.Constraint != nil {
			roots = append(roots, g.Constraint)
		}
	}
	return roots
}

func resolveGenerics(sig *types.Signature, root *types.TypeExpr, diags *types.Diagnostics) {
	types.Walk(root, func(t *types.TypeExpr) bool {
		if t.Kind != types.TypeGeneric {
			return true
		}
		decl, ok := sig.Generic(t.Name)
		if !ok {
			diags.Add(types.SeverityWarning, types.UnresolvedGenericError, sig.Location,
				"generic %s is not declared on %s", t.Name, sig.Name)
			t.Kind = types.TypeUnknown
			t.Capture = false
			return true
		}
		if t.Constraint == nil {
			t.Constraint = decl.Constraint
		}
		return true
	})
}

// linkAliases points named references that match an alias at the alias
// type. Recursive aliases produce cycles through Target.
func linkAliases(src Source, root *types.TypeExpr) {
	types.Walk(root, func(t *types.TypeExpr) bool {
		if t.Kind != types.TypePrimitive || len(t.Args) > 0 || types.IsBuiltin(t.Name) {
			return true
		}
		if alias, ok := src.LookupAlias(t.Name); ok {
			t.Target = alias.Type
		}
		return true
	})
}

// checkReturns reports return documentation that cannot be honoured. The
// findings are informational only.
func checkReturns(sig *types.Signature, diags *types.Diagnostics) {
	if sig.NoDiscard && len(sig.Returns) == 0 {
		diags.Add(types.SeverityInfo, types.ReturnArity, sig.Location,
			"%s is marked nodiscard but documents no return value", sig.Name)
	}
	for i, r := range sig.Returns {
		if r.Type.Kind == types.TypeVararg && i != len(sig.Returns)-1 {
			diags.Add(types.SeverityInfo, types.ReturnArity, sig.Location,
				"vararg return of %s is not the last return value", sig.Name)
		}
	}
}
