// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citeconv/pkg/types"
)

func TestResolve(t *testing.T) {
	work := "/work"
	tests := []struct {
		name        string
		cfg         types.StorageConfig
		wantBackend types.StorageBackend
		wantPath    string
	}{
		{
			name:        "db extension infers sqlite",
			cfg:         types.StorageConfig{Path: "/data/ids.db", WorkDir: work},
			wantBackend: types.BackendSQLite,
			wantPath:    "/data/ids.db",
		},
		{
			name:        "json extension infers memory",
			cfg:         types.StorageConfig{Path: "/data/ids.json", WorkDir: work},
			wantBackend: types.BackendMemory,
			wantPath:    "/data/ids.json",
		},
		{
			name:        "unknown extension falls back to sqlite default",
			cfg:         types.StorageConfig{Path: "/data/ids.txt", WorkDir: work},
			wantBackend: types.BackendSQLite,
			wantPath:    filepath.Join(work, "storage", "id_valid_dict.db"),
		},
		{
			name:        "nothing supplied defaults to sqlite",
			cfg:         types.StorageConfig{WorkDir: work},
			wantBackend: types.BackendSQLite,
			wantPath:    filepath.Join(work, "storage", "id_valid_dict.db"),
		},
		{
			name:        "explicit memory with mismatched extension gets default json",
			cfg:         types.StorageConfig{Backend: types.BackendMemory, Path: "/data/ids.db", WorkDir: work},
			wantBackend: types.BackendMemory,
			wantPath:    filepath.Join(work, "storage", "id_valid_dict.json"),
		},
		{
			name:        "explicit sqlite with mismatched extension gets default db",
			cfg:         types.StorageConfig{Backend: types.BackendSQLite, Path: "/data/ids.json", WorkDir: work},
			wantBackend: types.BackendSQLite,
			wantPath:    filepath.Join(work, "storage", "id_valid_dict.db"),
		},
		{
			name:        "explicit sqlite keeps matching path",
			cfg:         types.StorageConfig{Backend: types.BackendSQLite, Path: "/data/ids.DB", WorkDir: work},
			wantBackend: types.BackendSQLite,
			wantPath:    "/data/ids.DB",
		},
		{
			name:        "redis flag bypasses extension inference",
			cfg:         types.StorageConfig{UseRedis: true, Path: "/data/ids.db", WorkDir: work},
			wantBackend: types.BackendRedis,
			wantPath:    "",
		},
		{
			name:        "explicit redis backend",
			cfg:         types.StorageConfig{Backend: types.BackendRedis},
			wantBackend: types.BackendRedis,
			wantPath:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, path, err := Resolve(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBackend, backend)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestResolveUnknownBackend(t *testing.T) {
	_, _, err := Resolve(types.StorageConfig{Backend: "mongo"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want types.StorageBackend
	}{
		{"", types.BackendAuto},
		{"memory", types.BackendMemory},
		{"InMemoryStorageManager", types.BackendMemory},
		{"sqlite", types.BackendSQLite},
		{"SqliteStorageManager", types.BackendSQLite},
		{" Redis ", types.BackendRedis},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseBackend("postgres")
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpenCreatesDefaultLocation(t *testing.T) {
	work := t.TempDir()
	c, err := Open(context.Background(), types.StorageConfig{WorkDir: work})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, types.BackendSQLite, c.Backend())
	assert.Equal(t, filepath.Join(work, "storage", "id_valid_dict.db"), c.Location())
	assert.DirExists(t, filepath.Join(work, "storage"))
}

func TestOpenInfersMemoryFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ids.json")
	c, err := Open(context.Background(), types.StorageConfig{Path: path})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, types.BackendMemory, c.Backend())
	assert.Equal(t, path, c.Location())
}

// exerciseContract checks the behaviour every backend shares.
func exerciseContract(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	got, err := c.Get(ctx, "doi:10.1000/a")
	require.NoError(t, err)
	assert.Equal(t, types.Unresolved, got, "missing key is unresolved")

	ok, err := c.Contains(ctx, "doi:10.1000/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "doi:10.1000/a", true))
	require.NoError(t, c.Put(ctx, "doi:10.1000/b", false))

	got, err = c.Get(ctx, "doi:10.1000/a")
	require.NoError(t, err)
	assert.Equal(t, types.Valid, got)

	got, err = c.Get(ctx, "doi:10.1000/b")
	require.NoError(t, err)
	assert.Equal(t, types.Invalid, got)

	ok, err = c.Contains(ctx, "doi:10.1000/b")
	require.NoError(t, err)
	assert.True(t, ok)

	// Replace, never merge.
	require.NoError(t, c.Put(ctx, "doi:10.1000/b", true))
	got, err = c.Get(ctx, "doi:10.1000/b")
	require.NoError(t, err)
	assert.Equal(t, types.Valid, got)

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doi:10.1000/a", "doi:10.1000/b"}, keys)

	require.NoError(t, c.Persist(ctx))
}
