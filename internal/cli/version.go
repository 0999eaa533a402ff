package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/internal/mcp"
	"github.com/dshills/luacats-mcp/internal/storage"
)

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "luacats (%s)\n", mcp.ServerName)
			fmt.Fprintf(out, "Version: %s\n", info.Version)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Schema Version: %s\n", storage.CurrentSchemaVersion)
			return nil
		},
	}
}
