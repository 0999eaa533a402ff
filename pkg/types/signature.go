package types

import (
	"errors"
	"fmt"
	"strings"
)

// Param is a declared (or extraneously documented) parameter of a signature
type Param struct {
	Name        string
	Type        *TypeExpr
	Description string
	Optional    bool

	// Documented is false when no param tag matched the declared parameter
	Documented bool
	// Extraneous marks a param tag beyond the declared parameter list
	Extraneous bool
}

// BaseType returns the parameter type without the Optional wrapper implied
// by an optional name
func (p Param) BaseType() *TypeExpr {
	if p.Optional && p.Type != nil && p.Type.Kind == TypeOptional {
		return p.Type.Inner
	}
	return p.Type
}

// Return is a documented return value of a signature
type Return struct {
	Type        *TypeExpr
	Description string
	// Name is the optional result label, empty when absent
	Name string
}

// Signature is the merged record of a declaration and its annotation block,
// the unit stored in a symbol table
type Signature struct {
	// Identification
	Name string
	File string

	// Content
	Description string
	Params      []Param
	Returns     []Return
	Generics    []GenericDecl

	// Flags
	Documented bool
	IsMeta     bool
	IsMethod   bool
	IsLocal    bool
	Deprecated bool
	NoDiscard  bool
	Async      bool

	// Location of the declaration line
	Location Location

	// Declaration is the header the signature was built from
	Declaration Declaration
}

// Alias is a named type defined at file scope
type Alias struct {
	Name        string
	Type        *TypeExpr
	Description string
	Location    Location
}

// DeclaredParams returns the parameters that appear in the declaration,
// excluding extraneous tags
func (s *Signature) DeclaredParams() []Param {
	out := make([]Param, 0, len(s.Params))
	for _, p := range s.Params {
		if !p.Extraneous {
			out = append(out, p)
		}
	}
	return out
}

// Param returns the parameter with the given name
func (s *Signature) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Generic returns the generic declaration with the given name
func (s *Signature) Generic(name string) (GenericDecl, bool) {
	for _, g := range s.Generics {
		if g.Name == name {
			return g, true
		}
	}
	return GenericDecl{}, false
}

// View renders the declaration header
func (s *Signature) View() string {
	return s.Declaration.View()
}

// TypeView renders the signature as a function type, e.g.
// "fun(name: string): boolean"
func (s *Signature) TypeView() string {
	var sb strings.Builder
	sb.WriteString("fun(")
	first := true
	for _, p := range s.Params {
		if p.Extraneous {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(p.Name)
		if p.Optional {
			sb.WriteByte('?')
		}
		if p.Documented {
			sb.WriteString(": ")
			sb.WriteString(p.BaseType().String())
		}
	}
	sb.WriteByte(')')
	for i, r := range s.Returns {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(r.Type.String())
	}
	return sb.String()
}

// Validate performs structural validation of the signature
func (s *Signature) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}

	if s.Location.Line <= 0 {
		return ErrInvalidLocation
	}

	seen := make(map[string]bool, len(s.Params))
	for i, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("param %d: %w", i, ErrEmptyName)
		}
		if p.Type == nil {
			return fmt.Errorf("param %q: %w", p.Name, ErrNilType)
		}
		if p.Extraneous {
			continue
		}
		if seen[p.Name] {
			return fmt.Errorf("param %q: %w", p.Name, ErrDuplicateParam)
		}
		seen[p.Name] = true
	}

	for i, r := range s.Returns {
		if r.Type == nil {
			return fmt.Errorf("return %d: %w", i, ErrNilType)
		}
	}

	// Undocumented declarations are indexed with no params at all
	if s.Documented && len(s.DeclaredParams()) != len(s.Declaration.ParamNames) {
		return errors.New("declared params do not match declaration arity")
	}

	return nil
}
