// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective preprocess configuration as YAML",
	Long: `Config merges defaults, the config file, CITECONV_* environment variables
and flags the way preprocess does, and prints the result. Secrets are not
printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	addStorageFlags(configCmd)
	rootCmd.AddCommand(configCmd)
}
