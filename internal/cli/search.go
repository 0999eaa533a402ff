package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/luacats-mcp/internal/library"
	"github.com/dshills/luacats-mcp/internal/searcher"
	"github.com/dshills/luacats-mcp/internal/storage"
)

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var limit int
	var mode string

	cmd := &cobra.Command{
		Use:   "search <path> <query>",
		Short: "Search the indexed signatures of a library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.setup(cmd, args[:1])
			if err != nil {
				return err
			}
			root, err := library.RootOf(path)
			if err != nil {
				return err
			}

			store, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			lib, err := store.GetLibrary(ctx, root)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("library %s is not indexed; run 'luacats index %s' first", root, path)
			}
			if err != nil {
				return err
			}

			resp, err := searcher.NewSearcher(store).Search(ctx, searcher.SearchRequest{
				Query:     args[1],
				Limit:     limit,
				Mode:      searcher.SearchMode(mode),
				LibraryID: lib.ID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range resp.Results {
				fmt.Fprintf(out, "%2d. %s  %s  (%s:%d, %.2f)\n",
					r.Rank, r.Name, r.TypeView, r.File.Path, r.File.Line, r.RelevanceScore)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no results")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results (1-100)")
	cmd.Flags().StringVar(&mode, "mode", string(searcher.SearchModeHybrid), "Search mode: hybrid, name or keyword")
	return cmd
}
