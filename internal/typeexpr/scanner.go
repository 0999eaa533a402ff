package typeexpr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenKind identifies a lexical token of the type grammar
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokCapture // `T`
	tokEllipsis
	tokPunct
	tokInvalid
)

// token is a lexical element of a type fragment. Offset is a byte offset
// into the fragment.
type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) is(punct string) bool {
	return t.kind == tokPunct && t.text == punct
}

// scan splits a type fragment into tokens. Unterminated strings and
// unexpected characters produce tokInvalid tokens for the parser to report.
func scan(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case strings.HasPrefix(src[i:], "..."):
			toks = append(toks, token{kind: tokEllipsis, text: "...", offset: i})
			i += 3
		case isIdentStart(r):
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				// a '.' only continues an identifier when followed by another identifier
				if r == '.' && (i+1 >= len(src) || !isIdentStart(rune(src[i+1]))) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], offset: start})
		case r >= '0' && r <= '9' || r == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			i++
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.' || src[i] == 'x' ||
				src[i] >= 'a' && src[i] <= 'f' || src[i] >= 'A' && src[i] <= 'F') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], offset: start})
		case r == '"' || r == '\'':
			end := closingQuote(src, i)
			if end < 0 {
				toks = append(toks, token{kind: tokInvalid, text: src[i:], offset: i})
				return append(toks, token{kind: tokEOF, offset: len(src)})
			}
			toks = append(toks, token{kind: tokString, text: src[i : end+1], offset: i})
			i = end + 1
		case r == '`':
			end := strings.IndexByte(src[i+1:], '`')
			if end < 0 {
				toks = append(toks, token{kind: tokInvalid, text: src[i:], offset: i})
				return append(toks, token{kind: tokEOF, offset: len(src)})
			}
			toks = append(toks, token{kind: tokCapture, text: src[i+1 : i+1+end], offset: i})
			i += end + 2
		case strings.ContainsRune("|?[]{}()<>,:", r):
			toks = append(toks, token{kind: tokPunct, text: string(r), offset: i})
			i += size
		default:
			toks = append(toks, token{kind: tokInvalid, text: string(r), offset: i})
			i += size
		}
	}
	return append(toks, token{kind: tokEOF, offset: len(src)})
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// closingQuote returns the index of the quote closing the string starting
// at src[start], honoring backslash escapes, or -1
func closingQuote(src string, start int) int {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

// Split separates a type fragment from the text that follows it on an
// annotation line. The fragment ends at the first whitespace outside any
// bracket or quote that is not adjacent to '|', ',' or ':', or at a '#'
// outside brackets.
func Split(s string) (fragment, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			if end := closingQuote(s, i); end > 0 {
				i = end
			}
		case c == '`':
			if end := strings.IndexByte(s[i+1:], '`'); end >= 0 {
				i += end + 1
			}
		case c == '(' || c == '{' || c == '[' || c == '<':
			depth++
		case c == ')' || c == '}' || c == ']' || c == '>':
			if depth > 0 {
				depth--
			}
		case c == '#' && depth == 0:
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
		case (c == ' ' || c == '\t') && depth == 0:
			if joinsAcrossSpace(s, i) {
				continue
			}
			return s[:i], strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}

// joinsAcrossSpace reports whether the whitespace at s[i] sits between two
// parts of one type, as in "A | B" or "fun(): a, b"
func joinsAcrossSpace(s string, i int) bool {
	before := strings.TrimRightFunc(s[:i], unicode.IsSpace)
	after := strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	if before == "" || after == "" {
		return false
	}
	switch before[len(before)-1] {
	case '|', ',', ':':
		return true
	}
	switch after[0] {
	case '|':
		return true
	}
	return false
}
