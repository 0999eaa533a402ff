// Package lexer classifies the lines of a LuaCATS stub file.
//
// Every line becomes exactly one Line: an annotation line ("---" followed by
// a tag or free text), a function declaration, a blank line, or anything
// else. Tag payloads are decoded on the spot, and their type fragments are
// parsed with package typeexpr.
//
//	l := lexer.New("hello.lua", src, types.NewArena())
//	for line := range l.Lines() {
//	    fmt.Println(line.Location.Line, line.Kind)
//	}
//
// # Recognized Tags
//
//	@meta [name]
//	@param name[?] type [desc]
//	@vararg type [desc]
//	@return type [name] [# desc]
//	@generic T[: constraint], ...
//	@alias Name type [desc]
//	@deprecated, @nodiscard, @async
//
// Unknown tags are kept as description text with an info LexError. Malformed
// tags, such as a param with no name, are kept as description text with a
// warning LexError. Nothing in this package returns an error.
//
// Generic names declared by @generic are visible to the type fragments of
// the following lines of the same comment run.
package lexer
