package lexer

import (
	"iter"
	"regexp"
	"strings"
	"unicode"

	"github.com/dshills/luacats-mcp/internal/typeexpr"
	"github.com/dshills/luacats-mcp/pkg/types"
)

var (
	// function a.b:c(x, y)   local function f(x)
	funcDecl = regexp.MustCompile(`^(local\s+)?function\s+([A-Za-z_]\w*(?:\.[A-Za-z_]\w*)*(?::[A-Za-z_]\w*)?)\s*\(([^)]*)\)`)
	// a.b = function(x)   local f = function(x)
	assignDecl = regexp.MustCompile(`^(local\s+)?([A-Za-z_]\w*(?:\.[A-Za-z_]\w*)*)\s*=\s*function\s*\(([^)]*)\)`)
)

// Lexer classifies the lines of one source unit
type Lexer struct {
	file  string
	src   string
	arena *types.Arena
}

// New creates a Lexer over src. Type fragments are parsed into nodes
// allocated from arena.
func New(file, src string, arena *types.Arena) *Lexer {
	return &Lexer{
		file:  file,
		src:   strings.TrimPrefix(src, "\uFEFF"),
		arena: arena,
	}
}

// Lines returns the classified lines in source order. The sequence is
// finite and restartable: every iteration starts again from the first line
// and allocates fresh type nodes.
func (l *Lexer) Lines() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		st := &scanState{
			file:   l.file,
			parser: typeexpr.New(l.arena),
			arena:  l.arena,
		}
		number := 0
		for raw := range strings.Lines(l.src) {
			number++
			if !yield(st.classify(number, strings.TrimRight(raw, "\r\n"))) {
				return
			}
		}
	}
}

// scanState carries what one pass over the lines must remember
type scanState struct {
	file   string
	parser *typeexpr.Parser
	arena  *types.Arena

	// generics declared so far in the current run of annotation lines
	generics map[string]bool
	// longClose is the closing bracket of an open long comment
	longClose string
}

func (s *scanState) endRun() {
	s.generics = nil
}

func (s *scanState) inScope(name string) bool {
	return s.generics[name]
}

func (s *scanState) classify(number int, text string) Line {
	line := Line{
		Kind:     OtherLine,
		Location: types.Location{File: s.file, Line: number},
		Text:     text,
	}

	if s.longClose != "" {
		if strings.Contains(text, s.longClose) {
			s.longClose = ""
		}
		s.endRun()
		return line
	}

	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	indent := len(text) - len(trimmed)

	switch {
	case trimmed == "":
		s.endRun()
		line.Kind = BlankLine
	case strings.HasPrefix(trimmed, "---") && !strings.HasPrefix(trimmed, "----"):
		s.annotation(&line, indent+3)
	case strings.HasPrefix(trimmed, "--"):
		s.endRun()
		if closer, n := longBracket(trimmed[2:]); n > 0 && !strings.Contains(trimmed[2+n:], closer) {
			s.longClose = closer
		}
	default:
		s.endRun()
		if decl := parseDeclaration(trimmed); decl != nil {
			decl.Location = types.Location{File: s.file, Line: number, Column: indent + 1}
			line.Kind = DeclarationLine
			line.Declaration = decl
		}
	}
	return line
}

// longBracket reports the closing bracket for a long bracket opening s,
// e.g. "[==[" closes with "]==]", and the opener length. n is 0 when s does
// not open a long bracket.
func longBracket(s string) (closer string, n int) {
	if !strings.HasPrefix(s, "[") {
		return "", 0
	}
	level := 0
	for 1+level < len(s) && s[1+level] == '=' {
		level++
	}
	if 1+level >= len(s) || s[1+level] != '[' {
		return "", 0
	}
	return "]" + strings.Repeat("=", level) + "]", level + 2
}

func parseDeclaration(s string) *types.Declaration {
	m := funcDecl.FindStringSubmatch(s)
	if m == nil {
		m = assignDecl.FindStringSubmatch(s)
	}
	if m == nil {
		return nil
	}

	decl := &types.Declaration{
		Name:     m[2],
		IsLocal:  m[1] != "",
		IsMethod: strings.Contains(m[2], ":"),
	}
	if list := strings.TrimSpace(m[3]); list != "" {
		for _, p := range strings.Split(list, ",") {
			decl.ParamNames = append(decl.ParamNames, strings.TrimSpace(p))
		}
	}
	return decl
}

// annotation classifies a line whose "---" marker ends at byte offset off
func (s *scanState) annotation(line *Line, off int) {
	c := &cursor{text: line.Text, pos: off}
	if c.peek() == ' ' {
		c.pos++
	}
	body := strings.TrimRightFunc(c.rest(), unicode.IsSpace)

	line.Kind = DescriptionLine
	line.Description = body
	if !strings.HasPrefix(body, "@") {
		return
	}

	tagCol := c.column()
	c.pos++
	tag := c.word()
	switch tag {
	case "meta":
		line.Kind = MetaLine
		line.Description = ""
		line.MetaName = c.word()
	case "param":
		s.param(line, c, false)
	case "vararg":
		s.param(line, c, true)
	case "return":
		s.returnTag(line, c)
	case "generic":
		s.generic(line, c)
	case "alias":
		s.alias(line, c)
	case FlagDeprecated, FlagNoDiscard, FlagAsync:
		line.Kind = FlagLine
		line.Flag = tag
		line.Description = cleanDescription(c.rest())
	default:
		line.Diagnostics.Add(types.SeverityInfo, types.LexError, s.at(line, tagCol),
			"unknown tag @%s treated as description", tag)
	}
}

// malformed keeps the line as a description and records why
func (s *scanState) malformed(line *Line, col int, format string, args ...any) {
	line.Kind = DescriptionLine
	line.Diagnostics.Add(types.SeverityWarning, types.LexError, s.at(line, col), format, args...)
}

func (s *scanState) at(line *Line, col int) types.Location {
	loc := line.Location
	loc.Column = col
	return loc
}

func (s *scanState) parseType(line *Line, fragment string, col int) *types.TypeExpr {
	t, diags := s.parser.Parse(fragment, s.at(line, col), s.inScope)
	line.Diagnostics = append(line.Diagnostics, diags...)
	return t
}

func (s *scanState) param(line *Line, c *cursor, vararg bool) {
	nameCol := c.column()
	name := "..."
	if !vararg {
		c.skipSpace()
		nameCol = c.column()
		name = c.word()
		if name == "" {
			s.malformed(line, nameCol, "param tag is missing a name")
			return
		}
	}

	optional := false
	if len(name) > 1 && strings.HasSuffix(name, "?") {
		optional = true
		name = strings.TrimSuffix(name, "?")
	}
	if !isParamName(name) {
		s.malformed(line, nameCol, "invalid param name %q", name)
		return
	}

	fragment, col := c.typeFragment()
	typ := s.parseType(line, fragment, col)
	if optional {
		opt := s.arena.New(types.TypeOptional)
		opt.Inner = typ
		typ = opt
	}

	line.Kind = ParamLine
	line.Description = ""
	line.Param = &types.ParamTag{
		Name:        name,
		Type:        typ,
		Description: cleanDescription(c.rest()),
		Optional:    optional,
		Location:    s.at(line, nameCol),
	}
}

func (s *scanState) returnTag(line *Line, c *cursor) {
	fragment, col := c.typeFragment()
	if fragment == "" {
		s.malformed(line, col, "return tag is missing a type")
		return
	}
	typ := s.parseType(line, fragment, col)
	name, desc := returnLabel(strings.TrimSpace(c.rest()))

	line.Kind = ReturnLine
	line.Description = ""
	line.Return = &types.ReturnTag{
		Type:        typ,
		Name:        name,
		Description: desc,
		Location:    s.at(line, col),
	}
}

// returnLabel separates a result name from the description. The name is
// the identifier directly after the type; a '#' ends it.
func returnLabel(rest string) (name, desc string) {
	if rest == "" || rest[0] == '#' {
		return "", cleanDescription(rest)
	}
	end := strings.IndexAny(rest, " \t#")
	if end < 0 {
		end = len(rest)
	}
	if word := rest[:end]; isParamName(word) {
		return word, cleanDescription(strings.TrimSpace(rest[end:]))
	}
	return "", cleanDescription(rest)
}

func (s *scanState) generic(line *Line, c *cursor) {
	c.skipSpace()
	if c.rest() == "" {
		s.malformed(line, c.column(), "generic tag is missing a name")
		return
	}

	var decls []types.GenericDecl
	for _, part := range splitTopLevel(c.rest(), c.pos) {
		pc := &cursor{text: line.Text, pos: part.start}
		pc.skipSpace()
		nameCol := pc.column()
		name, constraint, hasConstraint := strings.Cut(strings.TrimSpace(part.text), ":")
		name = strings.TrimSpace(name)
		if !isIdent(name) {
			s.malformed(line, nameCol, "invalid generic name %q", name)
			return
		}

		decl := types.GenericDecl{Name: name, Location: s.at(line, nameCol)}
		if hasConstraint {
			off := strings.Index(line.Text[part.start:], ":") + part.start + 1
			cc := &cursor{text: line.Text, pos: off}
			cc.skipSpace()
			decl.Constraint = s.parseType(line, strings.TrimSpace(constraint), cc.column())
		}
		decls = append(decls, decl)
	}

	if s.generics == nil {
		s.generics = make(map[string]bool)
	}
	for _, d := range decls {
		s.generics[d.Name] = true
	}
	line.Kind = GenericLine
	line.Description = ""
	line.Generics = decls
}

func (s *scanState) alias(line *Line, c *cursor) {
	c.skipSpace()
	nameCol := c.column()
	name := c.word()
	if !isIdent(name) {
		s.malformed(line, nameCol, "alias tag is missing a name")
		return
	}
	fragment, col := c.typeFragment()
	if fragment == "" {
		s.malformed(line, col, "alias %s is missing a type", name)
		return
	}

	line.Kind = AliasLine
	line.Description = ""
	line.Alias = &types.AliasTag{
		Name:        name,
		Type:        s.parseType(line, fragment, col),
		Description: cleanDescription(c.rest()),
		Location:    s.at(line, nameCol),
	}
}

// part is a comma-separated piece of a line with its byte offset
type part struct {
	text  string
	start int
}

// splitTopLevel splits s on commas outside brackets; base is the offset of
// s in its line
func splitTopLevel(s string, base int) []part {
	var parts []part
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{', '[', '<':
			depth++
		case ')', '}', ']', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, part{text: s[start:i], start: base + start})
				start = i + 1
			}
		}
	}
	return append(parts, part{text: s[start:], start: base + start})
}

func cleanDescription(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	return strings.TrimSpace(s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func isParamName(s string) bool {
	return s == "..." || isIdent(s)
}

// cursor walks one line by byte offset so columns stay exact
type cursor struct {
	text string
	pos  int
}

func (c *cursor) peek() byte {
	if c.pos >= len(c.text) {
		return 0
	}
	return c.text[c.pos]
}

func (c *cursor) skipSpace() {
	for c.pos < len(c.text) && (c.text[c.pos] == ' ' || c.text[c.pos] == '\t') {
		c.pos++
	}
}

// word consumes the next whitespace-delimited word
func (c *cursor) word() string {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.text) && c.text[c.pos] != ' ' && c.text[c.pos] != '\t' {
		c.pos++
	}
	return c.text[start:c.pos]
}

// typeFragment consumes the type fragment starting at the next non-space
// byte and returns it with its column
func (c *cursor) typeFragment() (string, int) {
	c.skipSpace()
	col := c.column()
	fragment, _ := typeexpr.Split(c.rest())
	c.pos += len(fragment)
	return fragment, col
}

func (c *cursor) rest() string {
	if c.pos >= len(c.text) {
		return ""
	}
	return c.text[c.pos:]
}

// column is the 1-based column of the cursor
func (c *cursor) column() int {
	return c.pos + 1
}
