package lexer

import "github.com/dshills/luacats-mcp/pkg/types"

// LineKind classifies one source line
type LineKind int

const (
	BlankLine LineKind = iota
	OtherLine
	MetaLine
	ParamLine
	ReturnLine
	GenericLine
	AliasLine
	FlagLine
	DescriptionLine
	DeclarationLine
)

var lineKindNames = [...]string{
	BlankLine:       "blank",
	OtherLine:       "other",
	MetaLine:        "meta",
	ParamLine:       "param",
	ReturnLine:      "return",
	GenericLine:     "generic",
	AliasLine:       "alias",
	FlagLine:        "flag",
	DescriptionLine: "description",
	DeclarationLine: "declaration",
}

func (k LineKind) String() string {
	if int(k) < len(lineKindNames) {
		return lineKindNames[k]
	}
	return "invalid"
}

// IsAnnotation returns true for lines that belong to an annotation block
func (k LineKind) IsAnnotation() bool {
	switch k {
	case MetaLine, ParamLine, ReturnLine, GenericLine, AliasLine, FlagLine, DescriptionLine:
		return true
	}
	return false
}

// Flag names accepted on a FlagLine
const (
	FlagDeprecated = "deprecated"
	FlagNoDiscard  = "nodiscard"
	FlagAsync      = "async"
)

// Line is one classified source line. Only the payload field matching Kind
// is set.
type Line struct {
	Kind     LineKind
	Location types.Location
	// Text is the raw line without its terminator
	Text string

	MetaName    string
	Description string
	Param       *types.ParamTag
	Return      *types.ReturnTag
	Generics    []types.GenericDecl
	Alias       *types.AliasTag
	Flag        string
	Declaration *types.Declaration

	// Diagnostics raised while classifying the line, including type
	// fragment parse errors
	Diagnostics types.Diagnostics
}
