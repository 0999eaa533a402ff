package types

// TypeKind represents the variant of a type-expression node
type TypeKind string

const (
	TypePrimitive TypeKind = "primitive"
	TypeOptional  TypeKind = "optional"
	TypeUnion     TypeKind = "union"
	TypeTable     TypeKind = "table"
	TypeRecord    TypeKind = "record"
	TypeArray     TypeKind = "array"
	TypeFunction  TypeKind = "function"
	TypeGeneric   TypeKind = "generic"
	TypeLiteral   TypeKind = "literal"
	TypeVararg    TypeKind = "vararg"
	TypeUnknown   TypeKind = "unknown"
)

// builtinTypes are the primitive names known to the annotation dialect
var builtinTypes = map[string]bool{
	"nil": true, "any": true, "boolean": true, "string": true, "number": true,
	"integer": true, "function": true, "table": true, "thread": true,
	"userdata": true, "lightuserdata": true, "unknown": true, "self": true,
}

// IsBuiltin reports whether name is one of the dialect's builtin type names
func IsBuiltin(name string) bool {
	return builtinTypes[name]
}

// Field is a named entry of a record type
type Field struct {
	Name     string
	Type     *TypeExpr
	Optional bool
}

// FuncParam is a parameter of a function type. Type is nil when the
// parameter was written without an annotation.
type FuncParam struct {
	Name     string
	Type     *TypeExpr
	Optional bool
}

// TypeExpr is a node of a type-expression tree.
//
// Which fields are meaningful depends on Kind:
//
//	Primitive  Name, Args (generic application such as Foo<string>)
//	Optional   Inner
//	Union      Alternatives
//	Table      Key, Value
//	Record     Fields
//	Array      Inner
//	Function   Params, Returns
//	Generic    Name, Constraint, Capture
//	Literal    Name (raw literal text, quotes included)
//	Vararg     Inner (nil for a bare "...")
//	Unknown    Name (the fragment that failed to parse)
type TypeExpr struct {
	// ID is the node's index in the Arena that allocated it, -1 if none
	ID   int
	Kind TypeKind
	Name string

	Args         []*TypeExpr
	Inner        *TypeExpr
	Alternatives []*TypeExpr
	Key          *TypeExpr
	Value        *TypeExpr
	Fields       []Field
	Params       []FuncParam
	Returns      []*TypeExpr
	Constraint   *TypeExpr
	Capture      bool

	// Target links a named reference to the alias definition it resolves to.
	// Links may form cycles; use WalkResolved for traversal.
	Target *TypeExpr
}

// IsUnknown returns true if the node is the Unknown variant
func (t *TypeExpr) IsUnknown() bool {
	return t == nil || t.Kind == TypeUnknown
}

// IsNilable returns true if nil is an accepted value of the type
func (t *TypeExpr) IsNilable() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeOptional:
		return true
	case TypePrimitive:
		return t.Name == "nil" || t.Name == "any" || t.Name == "unknown"
	case TypeUnion:
		for _, alt := range t.Alternatives {
			if alt.IsNilable() {
				return true
			}
		}
	}
	return false
}

// Arena allocates type-expression nodes and gives each a stable identity.
// An Arena is not safe for concurrent use; each source unit owns one.
type Arena struct {
	nodes []*TypeExpr
}

// NewArena creates an empty Arena
func NewArena() *Arena {
	return &Arena{}
}

// New allocates a node of the given kind. A nil Arena allocates
// unindexed nodes.
func (a *Arena) New(kind TypeKind) *TypeExpr {
	if a == nil {
		return &TypeExpr{ID: -1, Kind: kind}
	}
	n := &TypeExpr{ID: len(a.nodes), Kind: kind}
	a.nodes = append(a.nodes, n)
	return n
}

// Primitive allocates a Primitive node
func (a *Arena) Primitive(name string) *TypeExpr {
	n := a.New(TypePrimitive)
	n.Name = name
	return n
}

// Unknown allocates an Unknown node carrying the raw fragment
func (a *Arena) Unknown(raw string) *TypeExpr {
	n := a.New(TypeUnknown)
	n.Name = raw
	return n
}

// Len returns the number of nodes allocated so far
func (a *Arena) Len() int {
	if a == nil {
		return 0
	}
	return len(a.nodes)
}

// Node returns the node with the given ID, or nil if out of range
func (a *Arena) Node(id int) *TypeExpr {
	if a == nil || id < 0 || id >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

// Walk visits every node of the tree rooted at root exactly once, without
// following alias links. Visiting stops early when fn returns false.
func Walk(root *TypeExpr, fn func(*TypeExpr) bool) {
	walk(root, false, fn)
}

// WalkResolved is like Walk but also follows alias links into the aliased
// types. Recursive aliases are visited once.
func WalkResolved(root *TypeExpr, fn func(*TypeExpr) bool) {
	walk(root, true, fn)
}

func walk(root *TypeExpr, follow bool, fn func(*TypeExpr) bool) {
	visited := make(map[*TypeExpr]struct{})
	var visit func(*TypeExpr) bool
	visit = func(t *TypeExpr) bool {
		if t == nil {
			return true
		}
		if _, seen := visited[t]; seen {
			return true
		}
		visited[t] = struct{}{}
		if !fn(t) {
			return false
		}
		for _, child := range t.children() {
			if !visit(child) {
				return false
			}
		}
		if follow {
			return visit(t.Target)
		}
		return true
	}
	visit(root)
}

// children returns the direct sub-expressions of a node, excluding Target
func (t *TypeExpr) children() []*TypeExpr {
	var out []*TypeExpr
	out = append(out, t.Args...)
	if t.Inner != nil {
		out = append(out, t.Inner)
	}
	out = append(out, t.Alternatives...)
	if t.Key != nil {
		out = append(out, t.Key)
	}
	if t.Value != nil {
		out = append(out, t.Value)
	}
	for _, f := range t.Fields {
		out = append(out, f.Type)
	}
	for _, p := range t.Params {
		if p.Type != nil {
			out = append(out, p.Type)
		}
	}
	out = append(out, t.Returns...)
	if t.Constraint != nil {
		out = append(out, t.Constraint)
	}
	return out
}

// Equal reports whether two type expressions are structurally equivalent.
// Union alternatives compare as a set, and Optional(x) is equivalent to
// Union(x, nil). Node IDs and alias links are ignored.
func Equal(a, b *TypeExpr) bool {
	if a == nil || b == nil {
		return a == b
	}

	altsA, altsB := alternatives(a), alternatives(b)
	if len(altsA) != 1 || len(altsB) != 1 {
		return sameSet(altsA, altsB)
	}
	a, b = altsA[0], altsB[0]

	if a.Kind != b.Kind || a.Name != b.Name || a.Capture != b.Capture {
		return false
	}

	switch a.Kind {
	case TypePrimitive:
		return equalList(a.Args, b.Args)
	case TypeArray, TypeVararg:
		return Equal(a.Inner, b.Inner)
	case TypeTable:
		return Equal(a.Key, b.Key) && Equal(a.Value, b.Value)
	case TypeRecord:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			fa, fb := a.Fields[i], b.Fields[i]
			if fa.Name != fb.Name || fa.Optional != fb.Optional || !Equal(fa.Type, fb.Type) {
				return false
			}
		}
		return true
	case TypeFunction:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			pa, pb := a.Params[i], b.Params[i]
			if pa.Name != pb.Name || pa.Optional != pb.Optional || !Equal(pa.Type, pb.Type) {
				return false
			}
		}
		return equalList(a.Returns, b.Returns)
	case TypeGeneric:
		return Equal(a.Constraint, b.Constraint)
	}
	return true
}

func equalList(a, b []*TypeExpr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// alternatives flattens unions and optionals into their member types
func alternatives(t *TypeExpr) []*TypeExpr {
	switch t.Kind {
	case TypeUnion:
		var out []*TypeExpr
		for _, alt := range t.Alternatives {
			out = append(out, alternatives(alt)...)
		}
		return out
	case TypeOptional:
		return append(alternatives(t.Inner), &TypeExpr{ID: -1, Kind: TypePrimitive, Name: "nil"})
	}
	return []*TypeExpr{t}
}

func sameSet(a, b []*TypeExpr) bool {
	contains := func(set []*TypeExpr, t *TypeExpr) bool {
		for _, s := range set {
			if Equal(s, t) {
				return true
			}
		}
		return false
	}
	for _, t := range a {
		if !contains(b, t) {
			return false
		}
	}
	for _, t := range b {
		if !contains(a, t) {
			return false
		}
	}
	return true
}
