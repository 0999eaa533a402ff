package typeexpr

import (
	"fmt"

	"github.com/dshills/luacats-mcp/pkg/types"
)

// GenericScope reports whether a name refers to a generic parameter visible
// where a fragment is parsed. A nil scope knows no generics.
type GenericScope func(name string) bool

// parseError is raised internally to unwind to Parse
type parseError struct {
	offset int
	msg    string
}

// Parser parses type fragments into type-expression trees allocated from
// one Arena
type Parser struct {
	arena *types.Arena
}

// New creates a Parser allocating nodes from arena
func New(arena *types.Arena) *Parser {
	return &Parser{arena: arena}
}

// Parse parses one type fragment. loc is the position of the fragment's
// first byte; diagnostics are reported relative to it. A fragment that
// fails to parse yields an Unknown node and exactly one TypeParseError.
func (p *Parser) Parse(fragment string, loc types.Location, scope GenericScope) (*types.TypeExpr, types.Diagnostics) {
	var diags types.Diagnostics

	if fragment == "" {
		diags.Add(types.SeverityError, types.TypeParseError, loc, "missing type")
		return p.arena.Unknown(""), diags
	}

	st := &state{arena: p.arena, toks: scan(fragment), scope: scope}
	expr, err := st.parseTop()
	if err != nil {
		at := loc
		at.Column += err.offset
		diags = append(diags, types.Diagnostic{
			Severity: types.SeverityError,
			Kind:     types.TypeParseError,
			Message:  fmt.Sprintf("invalid type %q: %s", fragment, err.msg),
			Location: at,
		})
		return p.arena.Unknown(fragment), diags
	}
	return expr, nil
}

// Parse parses a fragment with a throwaway arena
func Parse(fragment string) (*types.TypeExpr, types.Diagnostics) {
	return New(types.NewArena()).Parse(fragment, types.Location{Line: 1, Column: 1}, nil)
}

// state is the cursor over one fragment's tokens
type state struct {
	arena *types.Arena
	toks  []token
	pos   int
	depth int
	scope GenericScope
}

func (s *state) peek() token {
	return s.toks[s.pos]
}

func (s *state) peekAt(n int) token {
	if s.pos+n >= len(s.toks) {
		return s.toks[len(s.toks)-1]
	}
	return s.toks[s.pos+n]
}

func (s *state) next() token {
	t := s.toks[s.pos]
	if t.kind != tokEOF {
		s.pos++
	}
	return t
}

func (s *state) fail(t token, format string, args ...any) *parseError {
	return &parseError{offset: t.offset, msg: fmt.Sprintf(format, args...)}
}

func (s *state) expect(punct string) *parseError {
	t := s.next()
	if !t.is(punct) {
		return s.fail(t, "expected %q, found %s", punct, describe(t))
	}
	return nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of type"
	}
	return fmt.Sprintf("%q", t.text)
}

func (s *state) parseTop() (*types.TypeExpr, *parseError) {
	expr, err := s.parseUnion()
	if err != nil {
		return nil, err
	}
	if t := s.peek(); t.kind != tokEOF {
		return nil, s.fail(t, "unexpected %s", describe(t))
	}
	return expr, nil
}

// parseUnion parses postfix ('|' postfix)*
func (s *state) parseUnion() (*types.TypeExpr, *parseError) {
	first, err := s.parsePostfix()
	if err != nil {
		return nil, err
	}
	return s.continueUnion(first)
}

func (s *state) continueUnion(first *types.TypeExpr) (*types.TypeExpr, *parseError) {
	if !s.peek().is("|") {
		return first, nil
	}
	union := s.arena.New(types.TypeUnion)
	union.Alternatives = []*types.TypeExpr{first}
	for s.peek().is("|") {
		s.next()
		alt, err := s.parsePostfix()
		if err != nil {
			return nil, err
		}
		union.Alternatives = append(union.Alternatives, alt)
	}
	return union, nil
}

// parsePostfix parses atom ('?' | '[]')*
func (s *state) parsePostfix() (*types.TypeExpr, *parseError) {
	atom, err := s.parseAtom()
	if err != nil {
		return nil, err
	}
	return s.continuePostfix(atom)
}

func (s *state) continuePostfix(expr *types.TypeExpr) (*types.TypeExpr, *parseError) {
	for {
		switch t := s.peek(); {
		case t.is("?"):
			s.next()
			opt := s.arena.New(types.TypeOptional)
			opt.Inner = expr
			expr = opt
		case t.is("[") && s.peekAt(1).is("]"):
			s.next()
			s.next()
			arr := s.arena.New(types.TypeArray)
			arr.Inner = expr
			expr = arr
		default:
			return expr, nil
		}
	}
}

func (s *state) parseAtom() (*types.TypeExpr, *parseError) {
	t := s.peek()
	switch t.kind {
	case tokIdent:
		switch {
		case t.text == "fun" && s.peekAt(1).is("("):
			return s.parseFunction()
		case t.text == "table" && s.peekAt(1).is("<"):
			return s.parseTableGeneric()
		}
		return s.parseNamed()
	case tokCapture:
		s.next()
		if t.text == "" {
			return nil, s.fail(t, "empty generic capture")
		}
		g := s.arena.New(types.TypeGeneric)
		g.Name = t.text
		g.Capture = true
		return g, nil
	case tokString, tokNumber:
		s.next()
		lit := s.arena.New(types.TypeLiteral)
		lit.Name = t.text
		return lit, nil
	case tokEllipsis:
		s.next()
		va := s.arena.New(types.TypeVararg)
		if startsAtom(s.peek()) {
			inner, err := s.parsePostfix()
			if err != nil {
				return nil, err
			}
			va.Inner = inner
		}
		return va, nil
	case tokPunct:
		switch t.text {
		case "{":
			return s.parseBraces()
		case "(":
			s.next()
			s.depth++
			inner, err := s.parseUnion()
			if err != nil {
				return nil, err
			}
			s.depth--
			if err := s.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	case tokInvalid:
		return nil, s.fail(t, "invalid character %q", t.text)
	}
	return nil, s.fail(t, "expected a type, found %s", describe(t))
}

func startsAtom(t token) bool {
	switch t.kind {
	case tokIdent, tokCapture, tokString, tokNumber:
		return true
	case tokPunct:
		return t.text == "{" || t.text == "("
	}
	return false
}

// parseNamed parses IDENT ('<' type (',' type)* '>')?
func (s *state) parseNamed() (*types.TypeExpr, *parseError) {
	t := s.next()
	var node *types.TypeExpr
	if s.scope != nil && s.scope(t.text) {
		node = s.arena.New(types.TypeGeneric)
		node.Name = t.text
	} else {
		node = s.arena.Primitive(t.text)
	}

	if !s.peek().is("<") {
		return node, nil
	}
	if node.Kind == types.TypeGeneric {
		return nil, s.fail(s.peek(), "generic parameter %q cannot take type arguments", t.text)
	}
	s.next()
	s.depth++
	for {
		arg, err := s.parseUnion()
		if err != nil {
			return nil, err
		}
		node.Args = append(node.Args, arg)
		if !s.peek().is(",") {
			break
		}
		s.next()
	}
	s.depth--
	if err := s.expect(">"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseTableGeneric parses table<K, V>
func (s *state) parseTableGeneric() (*types.TypeExpr, *parseError) {
	s.next() // table
	s.next() // <
	s.depth++
	key, err := s.parseUnion()
	if err != nil {
		return nil, err
	}
	if err := s.expect(","); err != nil {
		return nil, err
	}
	value, err := s.parseUnion()
	if err != nil {
		return nil, err
	}
	s.depth--
	if err := s.expect(">"); err != nil {
		return nil, err
	}
	tbl := s.arena.New(types.TypeTable)
	tbl.Key = key
	tbl.Value = value
	return tbl, nil
}

// parseBraces parses a homogeneous map { [K]: V } or a record { a: T, b?: U }
func (s *state) parseBraces() (*types.TypeExpr, *parseError) {
	s.next() // {
	s.depth++
	defer func() { s.depth-- }()

	if s.peek().is("[") {
		s.next()
		key, err := s.parseUnion()
		if err != nil {
			return nil, err
		}
		if err := s.expect("]"); err != nil {
			return nil, err
		}
		if err := s.expect(":"); err != nil {
			return nil, err
		}
		value, err := s.parseUnion()
		if err != nil {
			return nil, err
		}
		if s.peek().is(",") {
			s.next()
		}
		if err := s.expect("}"); err != nil {
			return nil, err
		}
		tbl := s.arena.New(types.TypeTable)
		tbl.Key = key
		tbl.Value = value
		return tbl, nil
	}

	rec := s.arena.New(types.TypeRecord)
	seen := make(map[string]bool)
	for !s.peek().is("}") {
		name := s.next()
		if name.kind != tokIdent && name.kind != tokString {
			return nil, s.fail(name, "expected a field name, found %s", describe(name))
		}
		if seen[name.text] {
			return nil, s.fail(name, "duplicate field %q", name.text)
		}
		seen[name.text] = true

		field := types.Field{Name: name.text}
		if s.peek().is("?") {
			s.next()
			field.Optional = true
		}
		if err := s.expect(":"); err != nil {
			return nil, err
		}
		ft, err := s.parseUnion()
		if err != nil {
			return nil, err
		}
		field.Type = ft
		rec.Fields = append(rec.Fields, field)

		if !s.peek().is(",") {
			break
		}
		s.next()
	}
	if err := s.expect("}"); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseFunction parses fun(params): returns
func (s *state) parseFunction() (*types.TypeExpr, *parseError) {
	s.next() // fun
	s.next() // (
	fn := s.arena.New(types.TypeFunction)

	s.depth++
	for !s.peek().is(")") {
		name := s.next()
		if name.kind != tokIdent && name.kind != tokEllipsis {
			return nil, s.fail(name, "expected a parameter name, found %s", describe(name))
		}
		param := types.FuncParam{Name: name.text}
		if s.peek().is("?") {
			s.next()
			param.Optional = true
		}
		if s.peek().is(":") {
			s.next()
			pt, err := s.parseUnion()
			if err != nil {
				return nil, err
			}
			param.Type = pt
		}
		fn.Params = append(fn.Params, param)
		if !s.peek().is(",") {
			break
		}
		s.next()
	}
	s.depth--
	if err := s.expect(")"); err != nil {
		return nil, err
	}

	if !s.peek().is(":") {
		return fn, nil
	}
	s.next()

	if s.peek().is("(") {
		returns, err := s.parseParenList()
		if err != nil {
			return nil, err
		}
		if len(returns) > 1 {
			fn.Returns = returns
			return fn, nil
		}
		// a single parenthesized type may still carry postfix and union operators
		ret, err := s.continuePostfix(returns[0])
		if err != nil {
			return nil, err
		}
		if ret, err = s.continueUnion(ret); err != nil {
			return nil, err
		}
		fn.Returns = []*types.TypeExpr{ret}
		return fn, nil
	}

	ret, err := s.parseUnion()
	if err != nil {
		return nil, err
	}
	fn.Returns = []*types.TypeExpr{ret}
	// unparenthesized return lists are only unambiguous outside brackets
	for s.depth == 0 && s.peek().is(",") {
		s.next()
		ret, err := s.parseUnion()
		if err != nil {
			return nil, err
		}
		fn.Returns = append(fn.Returns, ret)
	}
	return fn, nil
}

// parseParenList parses '(' type (',' type)* ')'
func (s *state) parseParenList() ([]*types.TypeExpr, *parseError) {
	s.next() // (
	s.depth++
	var list []*types.TypeExpr
	for {
		t, err := s.parseUnion()
		if err != nil {
			return nil, err
		}
		list = append(list, t)
		if !s.peek().is(",") {
			break
		}
		s.next()
	}
	s.depth--
	if err := s.expect(")"); err != nil {
		return nil, err
	}
	return list, nil
}
