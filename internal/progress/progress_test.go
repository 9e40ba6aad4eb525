// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"", filepath.Join("work", "cache.json")},
		{"progress.txt", filepath.Join("work", "cache.json")},
		{"state/progress.json", "state/progress.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolvePath(tt.path, "work"), tt.path)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	assert.False(t, s.IsArchiveDone("a.tar"))
	assert.False(t, s.IsMemberDone("a.tar", "m1.gz"))
	assert.Empty(t, s.Completed("a.tar"))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRecordFlushLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	s, err := Load(path)
	require.NoError(t, err)

	assert.True(t, s.Record("a.tar", "m2.gz"))
	assert.True(t, s.Record("a.tar", "m1.gz"))
	s.Record("b.tar", "x.gz")
	s.RecordArchiveDone("b.tar")
	require.NoError(t, s.Flush())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string][]string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, map[string][]string{
		"completed_tar": {"b.tar"},
		"a.tar":         {"m1.gz", "m2.gz"},
		"b.tar":         {"x.gz"},
	}, onDisk)

	again, err := Load(path)
	require.NoError(t, err)
	assert.True(t, again.IsMemberDone("a.tar", "m1.gz"))
	assert.True(t, again.IsArchiveDone("b.tar"))
	assert.False(t, again.IsArchiveDone("a.tar"))
}

func TestRecordIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	once, err := Load(filepath.Join(dir, "once.json"))
	require.NoError(t, err)
	twice, err := Load(filepath.Join(dir, "twice.json"))
	require.NoError(t, err)

	once.Record("a.tar", "m.gz")
	twice.Record("a.tar", "m.gz")
	assert.False(t, twice.Record("a.tar", "m.gz"))
	once.RecordArchiveDone("a.tar")
	twice.RecordArchiveDone("a.tar")
	twice.RecordArchiveDone("a.tar")

	a, err := json.Marshal(once)
	require.NoError(t, err)
	b, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestLoadCollapsesDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"completed_tar":[],"a.tar":["m.gz","m.gz"]}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"m.gz"}, s.Completed("a.tar"))
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s, err := Load(path)
	require.NoError(t, err)
	s.Record("a.tar", "m.gz")
	require.NoError(t, s.Flush())
	assert.FileExists(t, path)

	require.NoError(t, s.Delete())
	assert.NoFileExists(t, path)
	require.NoError(t, s.Delete(), "deleting twice is fine")
}
