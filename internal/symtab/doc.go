// Package symtab builds and serves symbol tables of LuaCATS signatures.
//
// A Builder turns assembled (block, declaration) pairs into signatures,
// reconciling param tags with the declared parameter names. Once every
// stage has run, Publish freezes the content into a Table, which is
// read-only and may be shared between goroutines.
//
//	b := symtab.NewBuilder()
//	b.AddResult(assembled, arena)
//	b.AddDiagnostics(validator.Validate(b)...)
//	table := b.Publish()
//
//	if sig, ok := table.Lookup("hello"); ok {
//	    fmt.Println(sig.TypeView())
//	}
//
// # Parameter Reconciliation
//
// Each declared parameter takes, in order of preference: the tag at the
// same position if the names agree, the tag with the same name anywhere in
// the block, or the tag at the same position when that tag names no other
// declared parameter (reported as ParamMismatch; the declared name is
// kept). A declared parameter with no tag gets an Unknown type and a
// MissingParam diagnostic. Tags left over are appended as extraneous.
//
// A leading "self" tag on a method is consumed silently.
//
// # Duplicates
//
// The first definition of a name is kept. Every later one is reported as a
// DuplicateSymbolError located at the later definition, with Related
// pointing at the first.
package symtab
