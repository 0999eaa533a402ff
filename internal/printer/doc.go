// Package printer renders LuaCATS signatures as Markdown API docs.
//
// A library is printed as one part: a level 1 part title, a navigation
// list that follows the stub file hierarchy, then a chapter per file with
// one section per signature:
//
//	p := printer.New(printer.Options{HeadingLevel: 2})
//	err := p.PrintLibrary(os.Stdout, lib)
package printer
