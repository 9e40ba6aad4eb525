// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/citeconv/internal/archive"
	"github.com/pdiddy/citeconv/internal/extract"
	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/internal/output"
	"github.com/pdiddy/citeconv/internal/progress"
	"github.com/pdiddy/citeconv/internal/validity"
	"github.com/pdiddy/citeconv/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fixtures ---

// lineProcessor turns each "citing cited" line into an edge. A line "fail"
// returns an error and a line "panic" panics.
type lineProcessor struct{}

func (lineProcessor) ProcessLines(_ context.Context, r io.Reader) (*extract.Result, error) {
	res := &extract.Result{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "fail":
			return nil, errors.New("broken member")
		case "panic":
			panic("unexpected record")
		}
		citing, cited, _ := strings.Cut(line, " ")
		res.Edges = append(res.Edges, types.CitationEdge{Citing: citing, Cited: cited})
	}
	return res, sc.Err()
}

// countingSink records which members were written.
type countingSink struct {
	inner Sink
	mu    sync.Mutex
	calls []string
}

func (s *countingSink) Write(member string, rows []types.MetaRow, edges []types.CitationEdge) (output.Written, error) {
	s.mu.Lock()
	s.calls = append(s.calls, member)
	s.mu.Unlock()
	return s.inner.Write(member, rows, edges)
}

func (s *countingSink) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// backendCache reports a chosen backend over a memory cache.
type backendCache struct {
	validity.Cache
	backend types.StorageBackend
}

func (c backendCache) Backend() types.StorageBackend { return c.backend }

func writeGz(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

type env struct {
	input    string
	out      string
	progress string
	sink     *countingSink
	cache    validity.Cache
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	out := filepath.Join(root, "out")
	w, err := output.NewWriter(out, out+"_citations")
	require.NoError(t, err)
	return &env{
		input:    filepath.Join(root, "in"),
		out:      out,
		progress: filepath.Join(root, "cache.json"),
		sink:     &countingSink{inner: w},
		cache:    validity.NewMemory(filepath.Join(root, "ids.json")),
	}
}

func (e *env) controller(t *testing.T, workers int, log logger.Logger) (*Controller, *progress.State) {
	t.Helper()
	state, err := progress.Load(e.progress)
	require.NoError(t, err)
	return New(Config{InputDir: e.input, Workers: workers}, Deps{
		Processor: lineProcessor{},
		Sink:      e.sink,
		Progress:  state,
		Cache:     e.cache,
		Log:       log,
	}), state
}

// --- tests ---

func TestRunCompletesAndRemovesProgress(t *testing.T) {
	for _, workers := range []int{1, 3} {
		e := newEnv(t)
		writeGz(t, filepath.Join(e.input, "a", "m1.gz"), "x y\n")
		writeGz(t, filepath.Join(e.input, "a", "sub", "m2.gz"), "y z\nz w\n")
		writeGz(t, filepath.Join(e.input, "b", "m3.gz"), "")

		c, _ := e.controller(t, workers, nil)
		sum, err := c.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, Summary{Archives: 2, ArchivesDone: 2, Processed: 3, Edges: 3}, sum, "workers=%d", workers)
		assert.NoFileExists(t, e.progress)
		assert.FileExists(t, filepath.Join(e.out+"_citations", "m2.csv"))
		assert.NoFileExists(t, filepath.Join(e.out+"_citations", "m3.csv"), "empty member writes nothing")
		assert.FileExists(t, filepath.Join(filepath.Dir(e.progress), "ids.json"), "validity cache persisted")
	}
}

func TestRunSkipsRecordedMembersAndArchives(t *testing.T) {
	e := newEnv(t)
	writeGz(t, filepath.Join(e.input, "a", "m1.gz"), "x y\n")
	writeGz(t, filepath.Join(e.input, "a", "m2.gz"), "y z\n")
	require.NoError(t, os.WriteFile(filepath.Join(e.input, "done.tar"), []byte("never opened"), 0o644))
	require.NoError(t, os.WriteFile(e.progress, []byte(`{"completed_tar":["done.tar"],"a":["m1.gz"]}`), 0o644))

	c, _ := e.controller(t, 1, nil)
	sum, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"m2.gz"}, e.sink.written())
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.ArchivesSkipped)
	assert.NoDirExists(t, filepath.Join(e.input, "done"+archive.ExtractSuffix))
	assert.NoFileExists(t, e.progress)
}

func TestRunPooledFailuresLeaveProgress(t *testing.T) {
	e := newEnv(t)
	writeGz(t, filepath.Join(e.input, "a", "ok1.gz"), "x y\n")
	writeGz(t, filepath.Join(e.input, "a", "ok2.gz"), "y z\n")
	writeGz(t, filepath.Join(e.input, "a", "bad.gz"), "fail\n")
	writeGz(t, filepath.Join(e.input, "a", "boom.gz"), "panic\n")

	log, logs := logger.NewObserverLogger("debug")
	c, _ := e.controller(t, 3, log)
	require.False(t, c.Sequential())

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Failed)
	assert.True(t, sum.HasFailures())
	assert.Equal(t, 4, sum.Total())
	assert.Equal(t, 2, logs.FilterMessage("member failed").Len())

	reloaded, err := progress.Load(e.progress)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok1.gz", "ok2.gz"}, reloaded.Completed("a"))
	assert.False(t, reloaded.IsArchiveDone("a"))
}

func TestRunResumesOnlyFailedMembers(t *testing.T) {
	e := newEnv(t)
	writeGz(t, filepath.Join(e.input, "a", "ok.gz"), "x y\n")
	bad := filepath.Join(e.input, "a", "retry.gz")
	writeGz(t, bad, "fail\n")

	c, _ := e.controller(t, 1, nil)
	_, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, e.progress)

	writeGz(t, bad, "y z\n")
	c, _ = e.controller(t, 1, nil)
	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []string{"ok.gz", "retry.gz"}, e.sink.written(), "a failed member writes nothing")
	assert.NoFileExists(t, e.progress)
}

func TestSequentialModeSelection(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		backend types.StorageBackend
		want    bool
	}{
		{"single worker", 1, types.BackendMemory, true},
		{"zero workers", 0, types.BackendRedis, true},
		{"sqlite forces sequential", 8, types.BackendSQLite, true},
		{"memory pool", 4, types.BackendMemory, false},
		{"redis pool", 4, types.BackendRedis, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{Workers: tt.workers}, Deps{Cache: backendCache{Cache: validity.NewMemory(""), backend: tt.backend}})
			assert.Equal(t, tt.want, c.Sequential())
		})
	}
}

func TestRunFailsOnMissingInput(t *testing.T) {
	e := newEnv(t)
	c, _ := e.controller(t, 1, nil)
	_, err := c.Run(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancellation(t *testing.T) {
	e := newEnv(t)
	writeGz(t, filepath.Join(e.input, "a", "m1.gz"), "x y\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := e.controller(t, 2, nil)
	_, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.sink.written())
}
