// Package store persists conversation threads and their messages on a
// key-value backend.
//
// ThreadStore owns thread records and the per-resource index of thread ids.
// MessageStore owns message records and the per-thread list that orders them.
// Both are stateless wrappers over a backend.Backend and may be shared by any
// number of goroutines.
//
// # Key Schema
//
// The key layout is shared with other writers of the same database and must
// not change:
//   - thread:<id> - Hash {id, resourceId, title, metadata, createdAt, updatedAt}
//   - resource:<resourceId>:threads - Set of thread ids
//   - thread:<id>:messages - List of message ids, newest at the head
//   - message:<id> - Hash {id, threadId, role, content, createdAt, metadata}
//
// Metadata is stored as a JSON object and timestamps as RFC 3339 strings
// with nanosecond precision in UTC.
//
// # Consistency
//
// Writes that span several keys (creating a thread, appending a message,
// deleting a thread) are sent as one MULTI/EXEC batch. Reads tolerate
// inconsistencies left by older writers: an index entry whose thread record
// is gone, or belongs to another resource, is skipped and removed from the
// index. UpdateThread is a compare-and-swap on the thread record and fails
// with ErrConflict instead of silently overwriting a concurrent change.
//
// # Not Found
//
// Lookups of absent entities are not errors. GetThreadByID and UpdateThread
// return a nil thread, DeleteThread returns false and list reads return an
// empty slice. The exception is AddMessage, which cannot append to a thread
// that does not exist and reports ErrThreadNotFound.
package store
