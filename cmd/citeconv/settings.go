// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/citeconv/internal/validity"
	"github.com/pdiddy/citeconv/pkg/types"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRequestsPS = 5
	defaultRedisAddr  = "localhost:6379"
	defaultRedisDB    = 2
)

// flagKeys maps command-line flags to configuration keys. Flags are bound
// for the running command only, so commands sharing a key don't clash.
var flagKeys = map[string]string{
	"input":           "openaire_json_dir",
	"output":          "output",
	"publishers":      "publishers_filepath",
	"orcid":           "orcid_doi_filepath",
	"wanted":          "wanted_doi_filepath",
	"cache":           "cache_filepath",
	"verbose":         "verbose",
	"log-format":      "log_format",
	"max-workers":     "max_workers",
	"member-ext":      "member_ext",
	"storage-manager": "storage_manager",
	"storage-path":    "storage_path",
	"testing":         "testing",
	"redis":           "redis_storage_manager",
	"redis-addr":      "redis_addr",
	"redis-db":        "redis_db",
	"timeout":         "timeout",
	"rate":            "requests_per_second",
}

func setDefaults() {
	viper.SetDefault("max_workers", 1)
	viper.SetDefault("member_ext", ".gz")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("use_api_service", true)
	viper.SetDefault("redis_addr", defaultRedisAddr)
	viper.SetDefault("redis_db", defaultRedisDB)
	viper.SetDefault("timeout", defaultTimeout)
	viper.SetDefault("requests_per_second", defaultRequestsPS)
	viper.SetDefault("user_agent", "citeconv/"+version)
}

func bindFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = viper.BindPFlag(key, f)
	})
	if err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if f := cmd.Flags().Lookup("offline"); f != nil && f.Changed {
		viper.Set("use_api_service", f.Value.String() != "true")
	}
	return nil
}

// addStorageFlags registers the flags that locate the validity cache.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("storage-manager", "", "validity cache backend: memory, sqlite or redis (default: from --storage-path, else sqlite)")
	cmd.Flags().String("storage-path", "", "validity cache file (.db for sqlite, .json for memory)")
	cmd.Flags().Bool("testing", false, "isolate the validity cache from production state")
	cmd.Flags().Bool("redis", false, "use the shared redis validity cache")
	cmd.Flags().String("redis-addr", defaultRedisAddr, "redis host:port")
	cmd.Flags().Int("redis-db", defaultRedisDB, "redis logical database")
}

// loadConfig decodes the effective configuration and applies credentials.
func loadConfig() (types.PreprocessConfig, error) {
	var cfg types.PreprocessConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}

	backend, err := validity.ParseBackend(string(cfg.Storage.Backend))
	if err != nil {
		return cfg, err
	}
	cfg.Storage.Backend = backend

	wd, err := os.Getwd()
	if err != nil {
		return cfg, fmt.Errorf("resolving working directory: %w", err)
	}
	cfg.Storage.WorkDir = wd

	loadedCredentials.Apply(&cfg)
	return cfg, nil
}
