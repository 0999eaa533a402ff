// Package library scans a directory of LuaCATS stub files into one
// library-wide symbol table.
//
// Files are parsed concurrently, then merged in relative path order and
// validated once, so the first definition of a name is always the one from
// the lexically first file:
//
//	lib, err := library.Scan(ctx, "./stubs", library.Options{
//	    Workers: 4,
//	    Timeout: 30 * time.Second,
//	})
//	if err != nil {
//	    return err // root could not be read
//	}
//	if !lib.Complete {
//	    // deadline hit; lib.Table() holds what was parsed
//	}
//
// A file that cannot be read or is not valid UTF-8 is recorded as a
// FileError on that file and as a diagnostic. Its siblings are unaffected.
//
// The file hierarchy nests a/b.lua under a.lua so printers can render a
// library as nested parts.
package library
