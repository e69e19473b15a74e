package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Index every image under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, envFile)
			if err != nil {
				return err
			}

			report, err := a.indexer.ScanAndIndex(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("scanned %d, indexed %d, failed %d\n",
				report.Scanned(), report.Indexed(), report.Failed())
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}
