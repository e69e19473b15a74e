package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func dupesCmd() *cobra.Command {
	var (
		envFile   string
		near      bool
		threshold int
	)

	cmd := &cobra.Command{
		Use:   "dupes <directory>",
		Short: "Report duplicate images under a directory",
		Long: `Report duplicate images under a directory.

By default files with identical bytes are grouped. With --near, visually
similar files are clustered by perceptual hash distance instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildOffline(envFile)
			if err != nil {
				return err
			}

			if near {
				clusters, err := a.finder.FindNearDuplicates(ctx, args[0], threshold)
				if err != nil {
					return err
				}
				if len(clusters) == 0 {
					fmt.Println("no near-duplicates found")
					return nil
				}
				for i, cluster := range clusters {
					fmt.Printf("cluster %d:\n", i+1)
					for _, path := range cluster {
						fmt.Printf("  %s\n", path)
					}
				}
				return nil
			}

			groups, err := a.finder.FindExactDuplicates(ctx, args[0])
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Println("no duplicates found")
				return nil
			}

			hashes := make([]string, 0, len(groups))
			for hash := range groups {
				hashes = append(hashes, hash)
			}
			sort.Strings(hashes)
			for _, hash := range hashes {
				fmt.Printf("%s:\n", hash[:12])
				for _, path := range groups[hash] {
					fmt.Printf("  %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().BoolVar(&near, "near", false, "Cluster visually similar images instead of identical bytes")
	cmd.Flags().IntVar(&threshold, "threshold", -1, "Hamming distance threshold for --near (negative = configured default, 0 = identical fingerprints only)")

	return cmd
}
