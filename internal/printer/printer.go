package printer

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/dshills/luacats-mcp/internal/library"
	"github.com/dshills/luacats-mcp/pkg/types"
)

// Options control the Markdown layout
type Options struct {
	// HeadingLevel of a signature heading, 1..6 (default 2). File chapters
	// are one level above, the part title is always level 1.
	HeadingLevel int
	// PartTitle heads the whole document (default "API Reference")
	PartTitle string
	// NavDepth caps the nesting of the navigation list. Zero lists every
	// file at the top level.
	NavDepth int
}

// Printer renders signatures as Markdown
type Printer struct {
	opts Options
}

// New returns a printer with defaults filled in
func New(opts Options) *Printer {
	if opts.HeadingLevel < 1 || opts.HeadingLevel > 6 {
		opts.HeadingLevel = 2
	}
	if opts.PartTitle == "" {
		opts.PartTitle = "API Reference"
	}
	if opts.NavDepth < 0 {
		opts.NavDepth = 0
	}
	return &Printer{opts: opts}
}

// errWriter keeps the first write error so callers check once
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// PrintSignature writes one signature:
//
//	## name
//
//	description
//
//	```lua
//	function name(a, b)
//	```
//
// followed by parameter and return lists when any are documented.
func (p *Printer) PrintSignature(w io.Writer, sig *types.Signature) error {
	ew := &errWriter{w: w}
	p.signature(ew, sig)
	return ew.err
}

func (p *Printer) signature(ew *errWriter, sig *types.Signature) {
	ew.printf("%s %s\n\n", strings.Repeat("#", p.opts.HeadingLevel), sig.Name)

	if sig.Deprecated {
		ew.printf("**Deprecated**\n\n")
	}
	if sig.Description != "" {
		ew.printf("%s\n\n", sig.Description)
	}

	ew.printf("```lua\n%s\n```\n\n", sig.View())

	params := make([]types.Param, 0, len(sig.Params))
	for _, param := range sig.DeclaredParams() {
		if param.Documented {
			params = append(params, param)
		}
	}
	if len(params) > 0 {
		ew.printf("**Parameters**\n\n")
		for _, param := range params {
			name := param.Name
			if param.Optional {
				name += "?"
			}
			ew.printf("- `%s` `%s`%s\n", name, param.BaseType(), describe(param.Description))
		}
		ew.printf("\n")
	}

	if len(sig.Returns) > 0 {
		ew.printf("**Returns**\n\n")
		for _, ret := range sig.Returns {
			label := ""
			if ret.Name != "" {
				label = " `" + ret.Name + "`"
			}
			ew.printf("- `%s`%s%s\n", ret.Type, label, describe(ret.Description))
		}
		ew.printf("\n")
	}
}

func describe(desc string) string {
	if desc == "" {
		return ""
	}
	return ": " + desc
}

// Print writes signatures one after another, separated by a blank line
func (p *Printer) Print(w io.Writer, sigs []*types.Signature) error {
	ew := &errWriter{w: w}
	for i, sig := range sigs {
		if i > 0 {
			ew.printf("\n")
		}
		p.signature(ew, sig)
	}
	return ew.err
}

// PrintLibrary writes the whole library: the part title, a navigation list
// following the file hierarchy, then one chapter per file in navigation
// order. Files without signatures appear in navigation only.
func (p *Printer) PrintLibrary(w io.Writer, lib *library.Library) error {
	ew := &errWriter{w: w}
	ew.printf("# %s\n\n", p.opts.PartTitle)

	var order []*library.File
	var walk func(files []*library.File, depth int)
	walk = func(files []*library.File, depth int) {
		for _, f := range files {
			indent := min(depth, p.opts.NavDepth)
			title := ChapterTitle(f)
			ew.printf("%s- [%s](#%s)\n", strings.Repeat("  ", indent), title, Anchor(title))
			order = append(order, f)
			walk(f.SubFiles, depth+1)
		}
	}
	walk(lib.Roots(), 0)
	if len(order) > 0 {
		ew.printf("\n")
	}

	chapter := strings.Repeat("#", max(p.opts.HeadingLevel-1, 1))
	table := lib.Table()
	for _, f := range order {
		ew.printf("%s %s\n\n", chapter, ChapterTitle(f))
		for sig := range table.InFile(f.Path) {
			p.signature(ew, sig)
		}
	}
	return ew.err
}

// ChapterTitle is the meta name of a file, or its stem
func ChapterTitle(f *library.File) string {
	if f.MetaName != "" {
		return f.MetaName
	}
	return f.Title()
}

// Anchor returns the GitHub style heading anchor of a title
func Anchor(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
