// Package validator cross-checks signatures after a symbol table is built
// and before it is published.
//
// Checks:
//   - every Generic reference resolves to a generic declared on the same
//     signature; unresolved references become Unknown with an
//     UnresolvedGenericError
//   - named references matching an alias are linked to the alias type,
//     which may form cycles for recursive aliases
//   - return documentation is noted informationally (ReturnArity)
//
// All traversals go through types.Walk, which tracks visited nodes.
package validator
