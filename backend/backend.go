package backend

import (
	"context"
	"errors"
)

// ErrConflict is returned by UpdateHash when the watched key was modified by
// another client between the read and the write.
var ErrConflict = errors.New("backend: concurrent modification")

// Backend defines the primitive key-value operations used by the stores.
type Backend interface {
	// HGetAll returns every field of a hash. A missing key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HGetAllMany resolves several hashes in one round trip. The result is
	// index-aligned with keys; missing keys yield empty maps.
	HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error)

	// HSet writes the given fields into a hash, creating it if needed.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// SAdd adds members to a set.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from a set.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of a set.
	SMembers(ctx context.Context, key string) ([]string, error)

	// LPush pushes values onto the head of a list.
	LPush(ctx context.Context, key string, values ...string) error

	// LRange returns list elements between start and stop inclusive.
	// Negative indexes count from the tail, as in Redis.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// LLen returns the length of a list. A missing key has length 0.
	LLen(ctx context.Context, key string) (int64, error)

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Batch executes the writes queued by fn as a single transaction.
	Batch(ctx context.Context, fn func(tx Batch)) error

	// UpdateHash reads a hash, passes it to fn and writes back the fields fn
	// returns, failing with ErrConflict if the key changed in the meantime.
	// When fn returns a nil map nothing is written.
	UpdateHash(ctx context.Context, key string, fn func(current map[string]string) (map[string]string, error)) error

	// FlushAll removes every key in the store.
	FlushAll(ctx context.Context) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Batch collects writes that are applied together by Backend.Batch.
type Batch interface {
	HSet(key string, fields map[string]string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	LPush(key string, values ...string)
	Del(keys ...string)
}

// hashArgs flattens a field map into the field/value pairs HSET expects.
func hashArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
