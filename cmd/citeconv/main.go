// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the citeconv CLI, which converts
// OpenAIRE/Scholix citation dumps into metadata and citation CSV tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedCredentials holds what was read from .secrets/ at startup.
var loadedCredentials secrets.Credentials

// rootCmd is the base command for the citeconv CLI.
var rootCmd = &cobra.Command{
	Use:   "citeconv",
	Short: "Convert OpenAIRE citation dumps into citation index CSV tables",
	Long: `citeconv reads archived OpenAIRE/Scholix relationship dumps and writes two
CSV tables per dump member: metadata rows for entities whose identifiers still
need validation, and citing/referenced edges.

Runs are resumable: a progress file records every finished member and is
removed once every archive is complete. Identifier validity is cached in a
JSON file, a SQLite database or a shared redis namespace.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		creds, err := secrets.Load(".secrets/", logger.NewNoopLogger())
		if err != nil {
			return err
		}
		loadedCredentials = creds
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./citeconv.yaml or ~/.config/citeconv/citeconv.yaml)")
}

// addConfigSearch points v at citeconv.yaml in the working directory, then
// in ~/.config/citeconv when home is known.
func addConfigSearch(v *viper.Viper, home string) {
	v.SetConfigName("citeconv")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "citeconv"))
	}
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		addConfigSearch(viper.GetViper(), home)
	}

	viper.SetEnvPrefix("CITECONV")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
