package types

import "strings"

// String renders the type expression in the annotation grammar.
// Parsing the result yields an equivalent tree.
func (t *TypeExpr) String() string {
	if t == nil {
		return "any"
	}
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *TypeExpr) write(sb *strings.Builder) {
	switch t.Kind {
	case TypePrimitive:
		sb.WriteString(t.Name)
		if len(t.Args) > 0 {
			sb.WriteByte('<')
			writeList(sb, t.Args)
			sb.WriteByte('>')
		}
	case TypeOptional:
		writePostfixOperand(sb, t.Inner)
		sb.WriteByte('?')
	case TypeArray:
		writePostfixOperand(sb, t.Inner)
		sb.WriteString("[]")
	case TypeUnion:
		for i, alt := range t.Alternatives {
			if i > 0 {
				sb.WriteString("|")
			}
			if alt.Kind == TypeFunction || alt.Kind == TypeUnion {
				sb.WriteByte('(')
				alt.write(sb)
				sb.WriteByte(')')
				continue
			}
			alt.write(sb)
		}
	case TypeTable:
		sb.WriteString("table<")
		t.Key.write(sb)
		sb.WriteString(", ")
		t.Value.write(sb)
		sb.WriteByte('>')
	case TypeRecord:
		sb.WriteString("{ ")
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			if f.Optional {
				sb.WriteByte('?')
			}
			sb.WriteString(": ")
			f.Type.write(sb)
		}
		sb.WriteString(" }")
	case TypeFunction:
		sb.WriteString("fun(")
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
			if p.Optional {
				sb.WriteByte('?')
			}
			if p.Type != nil {
				sb.WriteString(": ")
				p.Type.write(sb)
			}
		}
		sb.WriteByte(')')
		switch len(t.Returns) {
		case 0:
		case 1:
			sb.WriteString(": ")
			if t.Returns[0].Kind == TypeFunction {
				sb.WriteByte('(')
				t.Returns[0].write(sb)
				sb.WriteByte(')')
			} else {
				t.Returns[0].write(sb)
			}
		default:
			sb.WriteString(": (")
			writeList(sb, t.Returns)
			sb.WriteByte(')')
		}
	case TypeGeneric:
		if t.Capture {
			sb.WriteByte('`')
			sb.WriteString(t.Name)
			sb.WriteByte('`')
		} else {
			sb.WriteString(t.Name)
		}
	case TypeVararg:
		sb.WriteString("...")
		if t.Inner != nil {
			writePostfixOperand(sb, t.Inner)
		}
	case TypeLiteral, TypeUnknown:
		sb.WriteString(t.Name)
	}
}

// writePostfixOperand parenthesizes operands that would otherwise absorb a
// trailing '?' or '[]'
func writePostfixOperand(sb *strings.Builder, t *TypeExpr) {
	if t.Kind == TypeUnion || t.Kind == TypeFunction {
		sb.WriteByte('(')
		t.write(sb)
		sb.WriteByte(')')
		return
	}
	t.write(sb)
}

func writeList(sb *strings.Builder, list []*TypeExpr) {
	for i, t := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		t.write(sb)
	}
}
