package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/pkg/types"
)

// ANSI colors per severity
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

func newCheckCommand(opts *globalOptions) *cobra.Command {
	var minSeverity string
	var noColor bool

	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Report annotation problems in a stub library",
		Long: "Parse every stub file under path and print its diagnostics.\n" +
			"Exits 1 when any diagnostic is an error or a file could not be read.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := types.ParseSeverity(minSeverity)
			if err != nil {
				return err
			}
			cfg, path, err := opts.setup(cmd, args)
			if err != nil {
				return err
			}

			lib, err := opts.scan(cmd.Context(), cfg, path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color := !noColor && isTerminal(out)
			diags := lib.Diagnostics()
			errorCount, warnCount := 0, 0
			for _, d := range diags {
				switch d.Severity {
				case types.SeverityError:
					errorCount++
				case types.SeverityWarning:
					warnCount++
				}
				if d.Severity > sev {
					continue
				}
				fmt.Fprintln(out, formatDiagnostic(d, color))
			}

			fmt.Fprintf(out, "%d files, %d signatures, %d errors, %d warnings\n",
				len(lib.Files()), lib.Table().Len(), errorCount, warnCount)
			if !lib.Complete {
				fmt.Fprintln(out, "scan incomplete: some files were not parsed")
			}

			if errorCount > 0 || len(lib.Errors()) > 0 {
				return ErrProblemsFound
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&minSeverity, "min-severity", "hint", "Least severe level to print: error, warning, info or hint")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

// formatDiagnostic renders one diagnostic line, with the severity colored
// when color is set
func formatDiagnostic(d types.Diagnostic, color bool) string {
	if !color {
		return d.String()
	}
	c := colorGray
	switch d.Severity {
	case types.SeverityError:
		c = colorRed
	case types.SeverityWarning:
		c = colorYellow
	case types.SeverityInfo:
		c = colorCyan
	}
	s := fmt.Sprintf("%s: %s%s%s: %s [%s]", d.Location, c, d.Severity, colorReset, d.Message, d.Kind)
	if d.Related != nil {
		s += fmt.Sprintf(" (see %s)", d.Related)
	}
	return s
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
