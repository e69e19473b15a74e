package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lensworks/lumen/domain/search"
)

func searchCmd() *cobra.Command {
	var (
		envFile string
		topK    int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "search <image>",
		Short: "Find images similar to the given image",
		Long: `Find images similar to the given image.

The query image is embedded with the configured model and matched against
the vector store. With --format the candidates are additionally narrowed
to that image format and the two rankings are fused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, envFile)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read query image: %w", err)
			}

			vector, err := a.queryEmbedding(ctx, data)
			if err != nil {
				return err
			}

			var hits []search.Hit
			if format != "" {
				filter := search.NewFilter().WithAll(search.NewCondition("format", format))
				hits, err = a.store.HybridSearch(ctx, vector, filter, topK)
			} else {
				hits, err = a.store.Search(ctx, vector, topK)
			}
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%.4f  %s\n", h.Score(), h.Path())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().IntVar(&topK, "top-k", 10, "Number of results to return")
	cmd.Flags().StringVar(&format, "format", "", "Restrict results to an image format (e.g. png)")

	return cmd
}
