// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citeconv/internal/validity"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or drop the identifier validity cache",
	Long: `Cache works on the validity cache selected by the storage flags or
configuration, the same one preprocess would use.`,
}

var cacheKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List cached identifiers with their validity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c validity.Cache) error {
			keys, err := c.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				v, err := c.Get(cmd.Context(), k)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s\t%s\n", k, v)
			}
			return nil
		})
	},
}

var cacheCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of cached identifiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c validity.Cache) error {
			keys, err := c.Keys(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%d identifiers in %s cache at %s\n", len(keys), c.Backend(), c.Location())
			return nil
		})
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the validity cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c validity.Cache) error {
			if err := c.Delete(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "deleted %s cache at %s\n", c.Backend(), c.Location())
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{cacheKeysCmd, cacheCountCmd, cacheDeleteCmd} {
		addStorageFlags(c)
		cacheCmd.AddCommand(c)
	}
	rootCmd.AddCommand(cacheCmd)
}

func withCache(cmd *cobra.Command, fn func(validity.Cache) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := validity.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening validity cache: %w", err)
	}
	defer c.Close()
	return fn(c)
}
