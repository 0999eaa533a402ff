package types

import "fmt"

// Severity ranks a diagnostic
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// String returns the lowercase severity name
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name back to its value
func ParseSeverity(name string) (Severity, error) {
	switch name {
	case "error":
		return SeverityError, nil
	case "warning":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	case "hint":
		return SeverityHint, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, name)
	}
}

// DiagnosticKind classifies the condition a diagnostic reports
type DiagnosticKind string

const (
	// LexError is unrecognized or malformed tag syntax inside a comment region
	LexError DiagnosticKind = "lex_error"
	// TypeParseError is a malformed type fragment; the type degrades to Unknown
	TypeParseError DiagnosticKind = "type_parse_error"
	// PairingError is an orphan block or an undocumented declaration
	PairingError DiagnosticKind = "pairing_error"
	// DuplicateSymbolError is a second definition of an already indexed name
	DuplicateSymbolError DiagnosticKind = "duplicate_symbol"
	// UnresolvedGenericError is a generic reference with no declaration on its signature
	UnresolvedGenericError DiagnosticKind = "unresolved_generic"
	// ParamMismatch is a param tag whose name or position disagrees with the declaration
	ParamMismatch DiagnosticKind = "param_mismatch"
	// ExtraneousParam is a param tag with no declared parameter to document
	ExtraneousParam DiagnosticKind = "extraneous_param"
	// MissingParam is a declared parameter with no param tag
	MissingParam DiagnosticKind = "missing_param"
	// DuplicateParam is a param tag name used twice in one block
	DuplicateParam DiagnosticKind = "duplicate_param"
	// ReturnArity is an informational note about documented return values
	ReturnArity DiagnosticKind = "return_arity"
	// ScanIncomplete marks a library scan abandoned before every file was parsed
	ScanIncomplete DiagnosticKind = "scan_incomplete"
	// FileError is a source unit that could not be read or decoded
	FileError DiagnosticKind = "file_error"
)

// Location is a position in a source unit. Line and Column are 1-based;
// Column 0 means the whole line.
type Location struct {
	File   string
	Line   int
	Column int
}

// String formats the location as file:line:col
func (l Location) String() string {
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Diagnostic is a recoverable problem found while parsing or validating
type Diagnostic struct {
	Severity Severity
	Kind     DiagnosticKind
	Message  string
	Location Location
	// Related points at a second location involved, such as the first
	// definition of a duplicated symbol
	Related *Location
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	return d.String()
}

// String formats the diagnostic as "loc: severity: message [kind]"
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s: %s [%s]", d.Location, d.Severity, d.Message, d.Kind)
	if d.Related != nil {
		s += fmt.Sprintf(" (see %s)", d.Related)
	}
	return s
}

// Diagnostics is an ordered collection of diagnostics
type Diagnostics []Diagnostic

// Add appends a diagnostic
func (ds *Diagnostics) Add(sev Severity, kind DiagnosticKind, loc Location, format string, args ...any) {
	*ds = append(*ds, Diagnostic{
		Severity: sev,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// HasErrors returns true if any diagnostic is of error severity
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics of the given kind
func (ds Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// AtLeast returns the diagnostics at or above the given severity
func (ds Diagnostics) AtLeast(sev Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity <= sev {
			out = append(out, d)
		}
	}
	return out
}
