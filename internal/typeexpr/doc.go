// Package typeexpr parses LuaCATS type fragments into type-expression trees.
//
// A fragment is the type part of a param, return, alias or generic line,
// e.g. "string|nil", "fun(a: integer): boolean" or "table<string, T[]>".
//
// # Basic Usage
//
//	arena := types.NewArena()
//	p := typeexpr.New(arena)
//	t, diags := p.Parse("string?", loc, nil)
//	fmt.Println(t) // "string?"
//
// Split separates the fragment from the free text that follows it on a line:
//
//	frag, desc := typeexpr.Split("string|nil The name")
//	// frag = "string|nil", desc = "The name"
//
// # Grammar
//
// Precedence from low to high: union ('|'), postfix ('?' and '[]'), atom.
// Atoms are function types, table<K, V>, map literals {[K]: V}, records
// {a: T, b?: U}, parenthesized types, `T` captures, string and number
// literals, varargs and named types with optional type arguments.
//
// Multiple unparenthesized returns of a function type are only accepted at
// the top level of a fragment; inside brackets they must be parenthesized.
//
// # Error Handling
//
// Parse never fails. A fragment that does not parse yields an Unknown node
// carrying the raw text plus one TypeParseError diagnostic positioned at the
// offending token.
package typeexpr
