package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/internal/mcp"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP protocol on stdio",
		Long:  "Serve the MCP tools on stdin/stdout. Logs go to stderr; stdout is reserved for the protocol.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd, "")
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(cfg, opts.logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			// Handle shutdown signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			// Start server in a goroutine
			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve(ctx)
			}()

			// Wait for shutdown signal or error
			select {
			case sig := <-sigChan:
				opts.logger.Info("received signal, shutting down", "signal", sig.String())
				return nil
			case <-ctx.Done():
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}
