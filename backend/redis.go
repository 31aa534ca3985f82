package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// PoolSize overrides the go-redis connection pool size when positive.
	PoolSize int
}

// RedisBackend implements Backend using go-redis/v9.
type RedisBackend struct {
	client *redis.Client
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend creates a Redis backend with the given options and verifies
// the connection with a PING.
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if opts.TLS != nil {
		redisOpts.TLSConfig = opts.TLS
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout
	if opts.PoolSize > 0 {
		redisOpts.PoolSize = opts.PoolSize
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

// HGetAll returns every field of a hash.
func (b *RedisBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash %s: %w", key, err)
	}
	return fields, nil
}

// HGetAllMany resolves several hashes with a single pipeline.
func (b *RedisBackend) HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return []map[string]string{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %d hashes: %w", len(keys), err)
	}

	out := make([]map[string]string, len(keys))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}

// HSet writes fields into a hash.
func (b *RedisBackend) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := b.client.HSet(ctx, key, hashArgs(fields)...).Err(); err != nil {
		return fmt.Errorf("failed to write hash %s: %w", key, err)
	}
	return nil
}

// SAdd adds members to a set.
func (b *RedisBackend) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := b.client.SAdd(ctx, key, stringArgs(members)...).Err(); err != nil {
		return fmt.Errorf("failed to add to set %s: %w", key, err)
	}
	return nil
}

// SRem removes members from a set.
func (b *RedisBackend) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := b.client.SRem(ctx, key, stringArgs(members)...).Err(); err != nil {
		return fmt.Errorf("failed to remove from set %s: %w", key, err)
	}
	return nil
}

// SMembers returns all members of a set.
func (b *RedisBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := b.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read set %s: %w", key, err)
	}
	return members, nil
}

// LPush pushes values onto the head of a list.
func (b *RedisBackend) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	if err := b.client.LPush(ctx, key, stringArgs(values)...).Err(); err != nil {
		return fmt.Errorf("failed to push to list %s: %w", key, err)
	}
	return nil
}

// LRange returns list elements between start and stop inclusive.
func (b *RedisBackend) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := b.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", key, err)
	}
	return values, nil
}

// LLen returns the length of a list.
func (b *RedisBackend) LLen(ctx context.Context, key string) (int64, error) {
	n, err := b.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read list length %s: %w", key, err)
	}
	return n, nil
}

// Del removes keys.
func (b *RedisBackend) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := b.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete %d keys: %w", len(keys), err)
	}
	return n, nil
}

// Batch executes the queued writes inside MULTI/EXEC.
func (b *RedisBackend) Batch(ctx context.Context, fn func(tx Batch)) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(&redisBatch{ctx: ctx, pipe: pipe})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// UpdateHash performs a WATCH-guarded read-modify-write of a hash.
func (b *RedisBackend) UpdateHash(ctx context.Context, key string, fn func(current map[string]string) (map[string]string, error)) error {
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read hash %s: %w", key, err)
		}

		fields, err := fn(current)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashArgs(fields)...)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("failed to update hash %s: %w", key, ErrConflict)
	}
	return err
}

// FlushAll removes every key in the current database.
func (b *RedisBackend) FlushAll(ctx context.Context) error {
	if err := b.client.FlushAll(ctx).Err(); err != nil {
		return fmt.Errorf("failed to flush store: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// redisBatch queues commands on a transactional pipeline.
type redisBatch struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (r *redisBatch) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	r.pipe.HSet(r.ctx, key, hashArgs(fields)...)
}

func (r *redisBatch) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	r.pipe.SAdd(r.ctx, key, stringArgs(members)...)
}

func (r *redisBatch) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	r.pipe.SRem(r.ctx, key, stringArgs(members)...)
}

func (r *redisBatch) LPush(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	r.pipe.LPush(r.ctx, key, stringArgs(values)...)
}

func (r *redisBatch) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	r.pipe.Del(r.ctx, keys...)
}
