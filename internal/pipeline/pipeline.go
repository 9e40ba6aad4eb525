// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives a resumable conversion run: it walks the input
// archives, processes every member not yet recorded as done and keeps the
// progress file current after each unit of work.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pdiddy/citeconv/internal/archive"
	"github.com/pdiddy/citeconv/internal/extract"
	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/internal/output"
	"github.com/pdiddy/citeconv/internal/progress"
	"github.com/pdiddy/citeconv/internal/validity"
	"github.com/pdiddy/citeconv/pkg/types"
)

// Processor turns one member's records into rows and edges.
type Processor interface {
	ProcessLines(ctx context.Context, r io.Reader) (*extract.Result, error)
}

// Sink stores one member's rows and edges, replacing earlier output.
type Sink interface {
	Write(member string, rows []types.MetaRow, edges []types.CitationEdge) (output.Written, error)
}

// Config selects what a run processes and how.
type Config struct {
	InputDir  string
	MemberExt string

	// Workers bounds concurrent members; 1 or less runs sequentially.
	Workers int
}

// Deps are the collaborators of a run.
type Deps struct {
	Processor Processor
	Sink      Sink
	Progress  *progress.State

	// Cache is persisted after every member and decides the dispatch mode.
	Cache validity.Cache

	Log logger.Logger
}

// Summary counts the outcome of a run.
type Summary struct {
	Archives        int
	ArchivesSkipped int
	ArchivesDone    int

	Processed int
	Skipped   int
	Failed    int

	Rows  int
	Edges int
}

// Total returns the number of members considered.
func (s Summary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// HasFailures reports whether any member or archive failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Controller runs the pipeline.
type Controller struct {
	cfg  Config
	deps Deps
	log  logger.Logger
}

// New returns a Controller. Missing Log discards output; an empty
// MemberExt means ".gz".
func New(cfg Config, deps Deps) *Controller {
	if cfg.MemberExt == "" {
		cfg.MemberExt = ".gz"
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Controller{cfg: cfg, deps: deps, log: log}
}

// Sequential reports whether members run one at a time. The embedded
// backend is never shared between concurrent writers.
func (c *Controller) Sequential() bool {
	return c.cfg.Workers <= 1 || c.deps.Cache.Backend() == types.BackendSQLite
}

// Run processes every pending archive. Member failures are logged and
// counted, and leave the member unrecorded for the next run. An error is
// returned only for failures that make continuing pointless: an unreadable
// input directory, an unwritable progress file or cancellation.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	archives, err := archive.List(c.cfg.InputDir)
	if err != nil {
		return sum, err
	}
	sum.Archives = len(archives)

	mode := "pooled"
	if c.Sequential() {
		mode = "sequential"
	}
	c.log.Info("run started",
		zap.String("input", c.cfg.InputDir),
		zap.Int("archives", len(archives)),
		zap.String("mode", mode),
		zap.String("cache", string(c.deps.Cache.Backend())))

	for _, a := range archives {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if c.deps.Progress.IsArchiveDone(a.Name) {
			sum.ArchivesSkipped++
			c.log.Debug("archive already complete", zap.String("archive", a.Name))
			continue
		}
		if err := c.runArchive(ctx, a, &sum); err != nil {
			return sum, err
		}
	}

	for _, a := range archives {
		if !c.deps.Progress.IsArchiveDone(a.Name) {
			return sum, nil
		}
	}
	if err := c.deps.Progress.Delete(); err != nil {
		return sum, err
	}
	c.log.Info("run complete, progress file removed", zap.String("progress", c.deps.Progress.Path()))
	return sum, nil
}

func (c *Controller) runArchive(ctx context.Context, a archive.Archive, sum *Summary) error {
	log := c.log.With(zap.String("archive", a.Name))

	members, err := a.Members(c.cfg.MemberExt)
	if err != nil {
		log.Error("listing members failed", zap.Error(err))
		sum.Failed++
		return nil
	}

	var pending []archive.Member
	for _, m := range members {
		if c.deps.Progress.IsMemberDone(a.Name, m.Name) {
			sum.Skipped++
			continue
		}
		pending = append(pending, m)
	}
	log.Info("archive started", zap.Int("members", len(members)), zap.Int("pending", len(pending)))

	if c.Sequential() {
		err = c.runSequential(ctx, a, pending, sum)
	} else {
		err = c.runPooled(ctx, a, pending, sum)
	}
	if err != nil {
		return err
	}

	for _, m := range members {
		if !c.deps.Progress.IsMemberDone(a.Name, m.Name) {
			log.Warn("archive incomplete, will resume on next run")
			return nil
		}
	}
	c.deps.Progress.RecordArchiveDone(a.Name)
	if err := c.deps.Progress.Flush(); err != nil {
		return fmt.Errorf("recording archive %s: %w", a.Name, err)
	}
	sum.ArchivesDone++
	log.Info("archive complete")
	return nil
}

// memberOutcome is what a processed member reports back for recording.
type memberOutcome struct {
	member archive.Member
	rows   int
	edges  int
	err    error
}

// process runs one member end to end: decode, extract, write, persist the
// validity cache. A panic is turned into an error.
func (c *Controller) process(ctx context.Context, m archive.Member) (out memberOutcome) {
	out.member = m
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic processing %s: %v", m.Name, r)
		}
	}()

	rc, err := m.Open()
	if err != nil {
		out.err = err
		return out
	}
	defer rc.Close()

	res, err := c.deps.Processor.ProcessLines(ctx, rc)
	if err != nil {
		out.err = fmt.Errorf("processing %s: %w", m.Name, err)
		return out
	}
	if _, err := c.deps.Sink.Write(m.Name, res.Rows, res.Edges); err != nil {
		out.err = err
		return out
	}
	if err := c.deps.Cache.Persist(ctx); err != nil {
		out.err = fmt.Errorf("persisting validity cache: %w", err)
		return out
	}
	out.rows, out.edges = len(res.Rows), len(res.Edges)
	return out
}

// record applies one outcome to the progress state and summary. Only a
// progress write failure is returned.
func (c *Controller) record(a archive.Archive, out memberOutcome, sum *Summary) error {
	log := c.log.With(zap.String("archive", a.Name), zap.String("member", out.member.Name))
	if out.err != nil {
		sum.Failed++
		log.Error("member failed", zap.Error(out.err))
		return nil
	}

	c.deps.Progress.Record(a.Name, out.member.Name)
	if err := c.deps.Progress.Flush(); err != nil {
		return fmt.Errorf("recording member %s: %w", out.member.Name, err)
	}
	sum.Processed++
	sum.Rows += out.rows
	sum.Edges += out.edges
	log.Info("member done", zap.Int("rows", out.rows), zap.Int("edges", out.edges))
	return nil
}

func (c *Controller) runSequential(ctx context.Context, a archive.Archive, pending []archive.Member, sum *Summary) error {
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.record(a, c.process(ctx, m), sum); err != nil {
			return err
		}
	}
	return nil
}
