package types

// ParamTag is a documented parameter from a param line
type ParamTag struct {
	Name        string
	Type        *TypeExpr
	Description string
	// Optional is set by a trailing '?' on the name
	Optional bool
	Location Location
}

// ReturnTag is a documented return value. Name is empty when the tag
// carries no result label.
type ReturnTag struct {
	Type        *TypeExpr
	Description string
	Name        string
	Location    Location
}

// GenericDecl declares a generic parameter, optionally constrained
type GenericDecl struct {
	Name       string
	Constraint *TypeExpr
	Location   Location
}

// AliasTag names a type expression at file scope
type AliasTag struct {
	Name        string
	Type        *TypeExpr
	Description string
	Location    Location
}

// AnnotationBlock is the contiguous run of annotation lines documenting one
// declaration
type AnnotationBlock struct {
	IsMeta      bool
	MetaName    string
	Description string

	Params   []ParamTag
	Returns  []ReturnTag
	Generics []GenericDecl
	Aliases  []AliasTag

	Deprecated bool
	NoDiscard  bool
	Async      bool

	// Start and End are the first and last lines of the block
	Start Location
	End   Location
}

// IsFileLevel returns true if the block only carries file-scope content
// (a meta marker or aliases) and so documents no declaration
func (b *AnnotationBlock) IsFileLevel() bool {
	if !b.IsMeta && len(b.Aliases) == 0 {
		return false
	}
	return len(b.Params) == 0 && len(b.Returns) == 0 && len(b.Generics) == 0
}

// Param returns the first tag with the given name
func (b *AnnotationBlock) Param(name string) (ParamTag, bool) {
	for _, p := range b.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamTag{}, false
}

// Declaration is a bare function header found after an annotation block
type Declaration struct {
	// Name is the full dotted path, e.g. "string.format" or "M:method"
	Name       string
	ParamNames []string
	IsMethod   bool
	IsLocal    bool
	Location   Location
}

// View renders the declaration header, e.g. "function hello(name)"
func (d *Declaration) View() string {
	view := "function " + d.Name + "("
	for i, p := range d.ParamNames {
		if i > 0 {
			view += ", "
		}
		view += p
	}
	view += ")"
	if d.IsLocal {
		view = "local " + view
	}
	return view
}
