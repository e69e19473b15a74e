package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the embedding cache",
	}

	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheClearCmd())

	return cmd
}

func cacheStatsCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print embedding cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildOffline(envFile)
			if err != nil {
				return err
			}
			cache, err := a.openCache()
			if err != nil {
				return err
			}

			count, err := cache.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("path:    %s\n", a.cfg.CachePath())
			fmt.Printf("entries: %d\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func cacheClearCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildOffline(envFile)
			if err != nil {
				return err
			}
			cache, err := a.openCache()
			if err != nil {
				return err
			}

			if err := cache.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("cache cleared")
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}
