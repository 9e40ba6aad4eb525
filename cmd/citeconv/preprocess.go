// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/citeconv/internal/extract"
	"github.com/pdiddy/citeconv/internal/httputil"
	"github.com/pdiddy/citeconv/internal/idmanager"
	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/internal/meta"
	"github.com/pdiddy/citeconv/internal/output"
	"github.com/pdiddy/citeconv/internal/pipeline"
	"github.com/pdiddy/citeconv/internal/progress"
	"github.com/pdiddy/citeconv/internal/validity"
	"github.com/pdiddy/citeconv/pkg/types"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Convert every pending dump member into CSV",
	Long: `Preprocess walks the archives of the input directory (tar, tar.gz or plain
directories) and converts each compressed member into a metadata CSV under
--output and an edge CSV under <output>_citations.

Members recorded in the progress file are skipped, so an interrupted run picks
up where it stopped. Failed members are logged and retried on the next run.
The progress file is deleted once every archive is complete.`,
	RunE: runPreprocess,
}

func init() {
	preprocessCmd.Flags().String("input", "", "directory of OpenAIRE dump archives")
	preprocessCmd.Flags().String("output", "", "directory for metadata CSV files")
	preprocessCmd.Flags().String("publishers", "", "CSV of publishers (id,name,prefix)")
	preprocessCmd.Flags().String("orcid", "", "DOI-ORCID index CSV file or directory")
	preprocessCmd.Flags().String("wanted", "", "CSV of the only DOIs to process")
	preprocessCmd.Flags().String("cache", "", "progress file; removed after a complete run (default ./cache.json)")
	preprocessCmd.Flags().BoolP("verbose", "v", false, "debug logging")
	preprocessCmd.Flags().String("log-format", "text", "log format: text or json")
	preprocessCmd.Flags().Int("max-workers", 1, "members processed concurrently")
	preprocessCmd.Flags().String("member-ext", ".gz", "extension of archive members to process")
	preprocessCmd.Flags().Bool("offline", false, "never query identifier authorities")
	preprocessCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")
	preprocessCmd.Flags().Float64("rate", defaultRequestsPS, "authority requests per second")
	addStorageFlags(preprocessCmd)

	rootCmd.AddCommand(preprocessCmd)
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.InputDir == "" || cfg.OutputDir == "" {
		return fmt.Errorf("both --input and --output are required")
	}

	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	log, err := logger.NewLogger(cfg.LogFormat, level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	cache, err := validity.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening validity cache: %w", err)
	}
	defer cache.Close()
	log.Info("validity cache ready",
		zap.String("backend", string(cache.Backend())),
		zap.String("location", cache.Location()))

	ids, err := newIDManager(cfg, cache, log)
	if err != nil {
		return err
	}
	rows, err := newRowBuilder(cfg, ids)
	if err != nil {
		return err
	}
	logAuxInputs(log, cfg)

	writer, err := output.NewWriter(cfg.OutputDir, cfg.CitationsDir())
	if err != nil {
		return err
	}

	state, err := progress.Load(progress.ResolvePath(cfg.ProgressPath, cfg.Storage.WorkDir))
	if err != nil {
		return err
	}
	if err := state.Flush(); err != nil {
		return err
	}

	ctrl := pipeline.New(pipeline.Config{
		InputDir:  cfg.InputDir,
		MemberExt: cfg.MemberExt,
		Workers:   cfg.MaxWorkers,
	}, pipeline.Deps{
		Processor: extract.New(ids, rows, log),
		Sink:      writer,
		Progress:  state,
		Cache:     cache,
		Log:       log,
	})

	sum, err := ctrl.Run(ctx)
	fmt.Fprintf(os.Stdout, "\nRun summary: %d processed, %d skipped, %d failed (total: %d); %d rows, %d edges; %d/%d archives complete\n",
		sum.Processed, sum.Skipped, sum.Failed, sum.Total(), sum.Rows, sum.Edges,
		sum.ArchivesDone+sum.ArchivesSkipped, sum.Archives)
	if err != nil {
		return err
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d member(s) failed; rerun to retry them", sum.Failed)
	}
	return nil
}

func newIDManager(cfg types.PreprocessConfig, cache validity.Cache, log logger.Logger) (*idmanager.Manager, error) {
	opts := []idmanager.Option{idmanager.WithLogger(log)}
	if cfg.UseAPIService {
		client := httputil.NewClient(&http.Client{Timeout: cfg.HTTP.Timeout}, cfg.HTTP.RequestsPerSecond, cfg.HTTP.UserAgent, 0)
		opts = append(opts, idmanager.WithAuthority(idmanager.NewHTTPAuthority(client)))
	}
	if cfg.WantedPath != "" {
		wanted, err := idmanager.LoadWanted(cfg.WantedPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, idmanager.WithWanted(wanted))
	}
	return idmanager.New(cache, opts...), nil
}

func newRowBuilder(cfg types.PreprocessConfig, ids *idmanager.Manager) (*meta.Builder, error) {
	var pubs meta.PublisherIndex
	if cfg.PublishersPath != "" {
		idx, err := meta.LoadPublishers(cfg.PublishersPath)
		if err != nil {
			return nil, err
		}
		pubs = idx
	}
	var orcids meta.OrcidIndex
	if cfg.OrcidIndexPath != "" {
		idx, err := meta.LoadOrcidIndex(cfg.OrcidIndexPath)
		if err != nil {
			return nil, err
		}
		orcids = idx
	}
	return meta.NewBuilder(ids, pubs, orcids), nil
}

func logAuxInputs(log logger.Logger, cfg types.PreprocessConfig) {
	var what []string
	if cfg.PublishersPath != "" {
		what = append(what, "publishers mapping")
	}
	if cfg.OrcidIndexPath != "" {
		what = append(what, "DOI-ORCID index")
	}
	if cfg.WantedPath != "" {
		what = append(what, "wanted DOIs CSV")
	}
	if len(what) > 0 {
		log.Debug("auxiliary inputs", zap.String("using", strings.Join(what, "; ")))
	}
	log.Debug("remote validation", zap.Bool("enabled", cfg.UseAPIService))
}
