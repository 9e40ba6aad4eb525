// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citeconv/pkg/types"
)

// sqliteCache keeps entries in a single id_valid table. Every Put is
// committed immediately.
type sqliteCache struct {
	db      *sql.DB
	path    string
	dsn     string
	testing bool
}

var _ Cache = (*sqliteCache)(nil)

// openSQLite opens or creates the table at path. In testing mode the
// database lives in a private in-memory instance and path is ignored.
func openSQLite(ctx context.Context, path string, testing bool) (*sqliteCache, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	if testing {
		dsn = "file:testing-" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrUnavailable, err)
	}
	// One writer; also keeps the in-memory testing database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS id_valid (
		id TEXT PRIMARY KEY,
		valid INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", ErrUnavailable, err)
	}

	return &sqliteCache{db: db, path: path, dsn: dsn, testing: testing}, nil
}

func (c *sqliteCache) Get(ctx context.Context, key string) (types.Validity, error) {
	var valid bool
	err := c.db.QueryRowContext(ctx, `SELECT valid FROM id_valid WHERE id = ?`, key).Scan(&valid)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Unresolved, nil
	}
	if err != nil {
		return types.Unresolved, fmt.Errorf("reading %s: %w", key, err)
	}
	return types.ValidityOf(valid), nil
}

// Put upserts with replace semantics so concurrent resolutions of the same
// key settle on the last write.
func (c *sqliteCache) Put(ctx context.Context, key string, valid bool) error {
	if _, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO id_valid (id, valid) VALUES (?, ?)`, key, valid,
	); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (c *sqliteCache) Contains(ctx context.Context, key string) (bool, error) {
	var n int
	if err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM id_valid WHERE id = ?`, key,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *sqliteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM id_valid ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (c *sqliteCache) Persist(context.Context) error { return nil }

// Delete empties the table and, for a file-backed database, closes it and
// removes the file with its WAL companions.
func (c *sqliteCache) Delete(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM id_valid`); err != nil {
		return fmt.Errorf("clearing id_valid: %w", err)
	}
	if c.testing {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	for _, p := range []string{c.path, c.path + "-wal", c.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Close is safe after Delete; closing a closed *sql.DB is a no-op.
func (c *sqliteCache) Close() error {
	return c.db.Close()
}

func (c *sqliteCache) Backend() types.StorageBackend { return types.BackendSQLite }

func (c *sqliteCache) Location() string {
	if c.testing {
		return c.dsn
	}
	return c.path
}
