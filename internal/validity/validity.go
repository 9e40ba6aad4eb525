// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validity stores the tri-state validity of normalized identifiers.
// Three interchangeable backends satisfy Cache: a transient in-process map
// that can be saved to a JSON file, an embedded SQLite table, and a shared
// redis namespace. Open picks one from a StorageConfig.
package validity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/citeconv/pkg/types"
)

const (
	defaultDir  = "storage"
	defaultName = "id_valid_dict"
)

var (
	// ErrUnknownBackend is returned for a backend name outside the closed set.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("storage backend unavailable")
)

// Cache maps normalized identifiers to a validity disposition. A missing key
// means unresolved. Writes replace; nothing is ever merged.
type Cache interface {
	Get(ctx context.Context, key string) (types.Validity, error)
	Put(ctx context.Context, key string, valid bool) error
	Contains(ctx context.Context, key string) (bool, error)

	// Keys returns every stored key in lexical order.
	Keys(ctx context.Context) ([]string, error)

	// Persist flushes in-process state to the backing store. Backends that
	// write through make it a no-op.
	Persist(ctx context.Context) error

	// Delete removes the backing store. The cache must not be used
	// afterwards except for Close.
	Delete(ctx context.Context) error

	Close() error

	Backend() types.StorageBackend

	// Location describes where entries live: a file path, a DSN or a
	// redis key prefix.
	Location() string
}

// ParseBackend maps a configured backend name to a StorageBackend. The
// historical manager class names are accepted too.
func ParseBackend(name string) (types.StorageBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return types.BackendAuto, nil
	case "memory", "inmemory", "inmemorystoragemanager", "json":
		return types.BackendMemory, nil
	case "sqlite", "sqlite3", "sqlitestoragemanager", "db":
		return types.BackendSQLite, nil
	case "redis", "redisstoragemanager":
		return types.BackendRedis, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// Resolve applies the selection policy and returns the backend to use and
// its file location (empty for redis).
//
// The shared backend wins whenever requested. Otherwise an explicit backend
// is kept, or inferred from the location's extension, defaulting to SQLite.
// A location whose extension doesn't fit the chosen backend is dropped in
// favour of <WorkDir>/storage/id_valid_dict.<ext>.
func Resolve(cfg types.StorageConfig) (types.StorageBackend, string, error) {
	if cfg.UseRedis || cfg.Backend == types.BackendRedis {
		return types.BackendRedis, "", nil
	}

	backend := cfg.Backend
	switch backend {
	case types.BackendMemory, types.BackendSQLite:
	case types.BackendAuto:
		switch strings.ToLower(filepath.Ext(cfg.Path)) {
		case types.BackendMemory.Extension():
			backend = types.BackendMemory
		default:
			backend = types.BackendSQLite
		}
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	path := cfg.Path
	if path != "" && !strings.EqualFold(filepath.Ext(path), backend.Extension()) {
		path = ""
	}
	if path == "" {
		workDir := cfg.WorkDir
		if workDir == "" {
			workDir = "."
		}
		path = filepath.Join(workDir, defaultDir, defaultName+backend.Extension())
	}
	return backend, path, nil
}

// Open resolves the backend for cfg and opens it. Failing to reach or
// create the store is fatal to the caller.
func Open(ctx context.Context, cfg types.StorageConfig) (Cache, error) {
	backend, path, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	switch backend {
	case types.BackendRedis:
		return openRedis(ctx, cfg.Redis, cfg.Testing)
	case types.BackendSQLite:
		if cfg.Testing {
			return openSQLite(ctx, "", true)
		}
		if err := ensureParent(path); err != nil {
			return nil, err
		}
		return openSQLite(ctx, path, false)
	default:
		if err := ensureParent(path); err != nil {
			return nil, err
		}
		return openMemory(path)
	}
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrUnavailable, dir, err)
	}
	return nil
}
