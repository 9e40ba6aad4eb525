// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pdiddy/citeconv/pkg/types"
)

const (
	redisNamespace   = "id_valid:"
	defaultRedisAddr = "localhost:6379"
	scanBatch        = 500
)

// redisCache stores "1"/"0" values under a fixed key prefix so it can share
// a database with unrelated data.
type redisCache struct {
	rdb     *goredis.Client
	prefix  string
	testing bool
	closed  bool
}

var _ Cache = (*redisCache)(nil)

// openRedis connects and pings the server. In testing mode keys go to a
// throwaway namespace that Close removes.
func openRedis(ctx context.Context, cfg types.RedisConfig, testing bool) (*redisCache, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = defaultRedisAddr
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %v", ErrUnavailable, addr, err)
	}

	prefix := redisNamespace
	if testing {
		prefix = "testing:" + uuid.NewString() + ":" + redisNamespace
	}
	return &redisCache{rdb: rdb, prefix: prefix, testing: testing}, nil
}

func (c *redisCache) key(k string) string { return c.prefix + k }

func (c *redisCache) Get(ctx context.Context, key string) (types.Validity, error) {
	v, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return types.Unresolved, nil
	}
	if err != nil {
		return types.Unresolved, fmt.Errorf("reading %s: %w", key, err)
	}
	return types.ValidityOf(v == "1"), nil
}

func (c *redisCache) Put(ctx context.Context, key string, valid bool) error {
	v := "0"
	if valid {
		v = "1"
	}
	if err := c.rdb.Set(ctx, c.key(key), v, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Contains(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.scan(ctx, func(batch []string) error {
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, c.prefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *redisCache) Persist(context.Context) error { return nil }

// Delete removes every key in the namespace; other data is untouched.
func (c *redisCache) Delete(ctx context.Context) error {
	return c.scan(ctx, func(batch []string) error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("deleting keys: %w", err)
		}
		return nil
	})
}

func (c *redisCache) scan(ctx context.Context, fn func([]string) error) error {
	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scanning %s*: %w", c.prefix, err)
		}
		if err := fn(batch); err != nil {
			return err
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close tears down a testing namespace before closing the connection.
func (c *redisCache) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	if c.testing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = c.Delete(ctx)
		cancel()
	}
	return errors.Join(err, c.rdb.Close())
}

func (c *redisCache) Backend() types.StorageBackend { return types.BackendRedis }

func (c *redisCache) Location() string { return c.prefix }
