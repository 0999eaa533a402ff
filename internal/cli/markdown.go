package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/internal/printer"
)

func newMarkdownCommand(opts *globalOptions) *cobra.Command {
	var output string
	var headingLevel int
	var partTitle string
	var navDepth int

	cmd := &cobra.Command{
		Use:   "markdown [path]",
		Short: "Generate Markdown API docs from LuaCATS definitions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.setup(cmd, args)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("heading-level") {
				cfg.HeadingLevel = headingLevel
			}
			if flags.Changed("part-title") {
				cfg.PartTitle = partTitle
			}
			if flags.Changed("nav-depth") {
				cfg.NavDepth = navDepth
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			lib, err := opts.scan(cmd.Context(), cfg, path)
			if err != nil {
				return err
			}
			for _, fe := range lib.Errors() {
				opts.logger.Warn("skipped unreadable file", "path", fe.Path, "error", fe.Err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			bw := bufio.NewWriter(w)
			p := printer.New(printer.Options{
				HeadingLevel: cfg.HeadingLevel,
				PartTitle:    cfg.PartTitle,
				NavDepth:     cfg.NavDepth,
			})
			if err := p.PrintLibrary(bw, lib); err != nil {
				return fmt.Errorf("failed to write markdown: %w", err)
			}
			return bw.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file or '-' for stdout")
	cmd.Flags().IntVar(&headingLevel, "heading-level", 2, "Heading level of a signature (1-6)")
	cmd.Flags().StringVar(&partTitle, "part-title", "API Reference", "Title of the generated part")
	cmd.Flags().IntVar(&navDepth, "nav-depth", 2, "Maximum nesting of the navigation list")
	return cmd
}
