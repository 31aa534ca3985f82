// Package backend provides the key-value primitives that conversation state
// is persisted on.
//
// The backend is a remote Redis-compatible store. Every method on Backend maps
// to a single command against a single key and is atomic only for that key.
// Two helpers sit on top of the primitives:
//
//   - Batch queues writes against several keys and executes them as one
//     MULTI/EXEC transaction, so a crash cannot leave half of them applied.
//   - UpdateHash performs a WATCH-guarded read-modify-write of one hash and
//     reports ErrConflict when another writer touched the key in between.
//
// # Usage
//
// Creating a backend:
//
//	b, err := backend.NewRedisBackend(backend.RedisOptions{
//		URL:            "redis://localhost:6379",
//		ConnectTimeout: 5 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
// Writing several keys together:
//
//	err := b.Batch(ctx, func(tx backend.Batch) {
//		tx.HSet("thread:123", map[string]string{"id": "123"})
//		tx.SAdd("resource:user-1:threads", "123")
//	})
//
// # Error Handling
//
// Missing keys are not errors: HGetAll returns an empty map, SMembers and
// LRange return empty slices. Connection, timeout and protocol failures are
// returned wrapped with the failing operation; errors.Is still matches the
// underlying go-redis error. Nothing is retried.
//
// # Thread Safety
//
// RedisBackend is safe for concurrent use by multiple goroutines.
package backend
