package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/internal/config"
	"github.com/dshills/luacats-mcp/internal/indexer"
	"github.com/dshills/luacats-mcp/internal/storage"
)

// openStorage opens the index database named by the config, creating its
// directory
func openStorage(cfg *config.Config) (*storage.SQLiteStorage, error) {
	dbPath, err := cfg.ResolvedDBPath()
	if err != nil {
		return nil, err
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return storage.NewSQLiteStorage(dbPath)
}

func newIndexCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a stub library for search",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.setup(cmd, args)
			if err != nil {
				return err
			}

			store, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			idx := indexer.New(store, opts.logger)
			stats, err := idx.IndexLibrary(cmd.Context(), path, &indexer.Config{
				Workers:       cfg.Workers,
				Timeout:       cfg.Timeout,
				Extensions:    cfg.Extensions,
				IncludeHidden: cfg.IncludeHidden,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d files (%d skipped, %d failed, %d removed) in %v\n",
				stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesRemoved, stats.Duration)
			fmt.Fprintf(out, "Stored %d signatures, %d aliases, %d diagnostics\n",
				stats.SignaturesStored, stats.AliasesStored, stats.Diagnostics)
			for _, msg := range stats.ErrorMessages {
				fmt.Fprintf(out, "  error: %s\n", msg)
			}
			if !stats.Complete {
				fmt.Fprintln(out, "scan incomplete: some files were not parsed")
			}
			return nil
		},
	}
	return cmd
}
