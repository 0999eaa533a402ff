// Package parser turns LuaCATS stub files into symbol tables.
//
// It chains the pipeline stages in order: the lexer classifies lines, the
// assembler pairs annotation blocks with declarations, the symbol table
// builder reconciles them into signatures, and the validator cross-checks
// the result before it is published.
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.ParseFile("/path/to/hello.lua")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if sig, ok := result.Table.Lookup("hello"); ok {
//	    fmt.Println(sig.View(), sig.TypeView())
//	}
//
// # Error Handling
//
// Problems in the annotations never make ParseFile fail:
//
//	result, err := p.ParseFile("broken.lua")
//	// err is nil even for malformed tags and types
//
//	for _, d := range result.Diagnostics() {
//	    fmt.Println(d)
//	}
//
// Malformed types degrade to Unknown, orphan blocks are kept, duplicate
// names keep their first definition. Only input that cannot be read, or is
// not valid UTF-8 (types.ErrInvalidUTF8), returns an error.
//
// # Merging
//
// Build stops short of validation so that several units can be merged into
// one library-wide builder and validated together:
//
//	lib := symtab.NewBuilder()
//	for _, path := range paths {
//	    unit, err := p.Build(path, src[path])
//	    ...
//	    lib.Merge(unit.Builder)
//	}
//	lib.AddDiagnostics(validator.Validate(lib)...)
//	table := lib.Publish()
package parser
