// Package types provides shared type definitions for the luacats index.
//
// This package defines the domain types passed between the annotation
// pipeline stages and the outer surfaces (storage, search, MCP server):
// type expressions, annotation blocks, declarations, signatures and
// diagnostics.
//
// # Type Expressions
//
// TypeExpr is a tree over the variants Primitive, Optional, Union, Table,
// Record, Array, Function, Generic, Literal, Vararg and Unknown. Nodes are
// allocated from an Arena, which gives each one a stable ID:
//
//	arena := types.NewArena()
//	str := arena.Primitive("string")
//	opt := arena.New(types.TypeOptional)
//	opt.Inner = str
//	fmt.Println(opt) // string?
//
// String renders a tree back into the annotation grammar, and Equal compares
// two trees structurally (union alternatives as a set, Optional(x) as
// Union(x, nil)).
//
// Named references may be linked to alias definitions through Target, which
// can make the graph cyclic. WalkResolved follows those links and tracks
// visited nodes so traversals always terminate. Walk visits the tree alone:
//
//	types.Walk(sig.Params[0].Type, func(t *types.TypeExpr) bool {
//	    if t.Kind == types.TypeGeneric {
//	        fmt.Println("generic", t.Name)
//	    }
//	    return true
//	})
//
// # Signatures
//
// Signature is the merge of a Declaration (the bare function header) and the
// AnnotationBlock preceding it:
//
//	sig := &types.Signature{
//	    Name:    "greet",
//	    Params:  []types.Param{{Name: "name", Type: str, Documented: true}},
//	    Returns: []types.Return{{Type: str}},
//	}
//	fmt.Println(sig.TypeView()) // fun(name: string): string
//
// # Diagnostics
//
// Every parsing and validation problem is a Diagnostic value rather than a Go
// error. Diagnostics carry a Severity, a DiagnosticKind and a Location:
//
//	var diags types.Diagnostics
//	diags.Add(types.SeverityWarning, types.PairingError, loc, "orphan block")
//	if diags.HasErrors() {
//	    // ...
//	}
package types
