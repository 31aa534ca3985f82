package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/zero-day-ai/coachmem/backend"
	"github.com/zero-day-ai/coachmem/ids"
)

// ThreadStore manages thread records and the resource index.
type ThreadStore struct {
	backend backend.Backend
	ids     ids.Generator
	now     func() time.Time
	logger  *slog.Logger
}

// NewThreadStore creates a ThreadStore on top of b.
func NewThreadStore(b backend.Backend, opts ...Option) *ThreadStore {
	o := buildOptions(opts)
	return &ThreadStore{
		backend: b,
		ids:     o.ids,
		now:     o.now,
		logger:  o.logger.With("component", "thread_store"),
	}
}

// CreateThread creates a thread for resourceID and registers it in the
// resource index. The returned thread is the value that was written.
func (s *ThreadStore) CreateThread(ctx context.Context, resourceID, title string, metadata map[string]any) (*Thread, error) {
	now := s.now()
	thread := &Thread{
		ID:         s.ids.NewID(),
		ResourceID: resourceID,
		Title:      title,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	fields, err := encodeThread(thread)
	if err != nil {
		return nil, err
	}
	// return metadata as it reads back, e.g. numbers as float64
	if thread.Metadata, err = decodeMetadata(fields[fieldMetadata]); err != nil {
		return nil, err
	}

	err = s.backend.Batch(ctx, func(tx backend.Batch) {
		tx.HSet(threadKey(thread.ID), fields)
		tx.SAdd(resourceThreadsKey(resourceID), thread.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("store: create thread: %w", err)
	}

	s.logger.Debug("thread created", "thread_id", thread.ID, "resource_id", resourceID)
	return thread, nil
}

// GetThreadByID returns the thread with the given id, or nil if it does not
// exist.
func (s *ThreadStore) GetThreadByID(ctx context.Context, id string) (*Thread, error) {
	fields, err := s.backend.HGetAll(ctx, threadKey(id))
	if err != nil {
		return nil, fmt.Errorf("store: get thread %s: %w", id, err)
	}
	thread, err := decodeThread(fields)
	if err != nil {
		return nil, fmt.Errorf("store: get thread %s: %w", id, err)
	}
	return thread, nil
}

// GetThreadsByResourceID returns the threads registered for resourceID,
// most recently updated first. Index entries that no longer resolve to a
// thread of this resource are skipped and pruned from the index.
func (s *ThreadStore) GetThreadsByResourceID(ctx context.Context, resourceID string) ([]Thread, error) {
	indexKey := resourceThreadsKey(resourceID)

	threadIDs, err := s.backend.SMembers(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("store: list threads of %s: %w", resourceID, err)
	}
	if len(threadIDs) == 0 {
		return []Thread{}, nil
	}

	keys := make([]string, len(threadIDs))
	for i, id := range threadIDs {
		keys[i] = threadKey(id)
	}
	records, err := s.backend.HGetAllMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("store: list threads of %s: %w", resourceID, err)
	}

	threads := make([]Thread, 0, len(records))
	var dangling []string
	for i, fields := range records {
		thread, err := decodeThread(fields)
		if err != nil {
			return nil, fmt.Errorf("store: list threads of %s: thread %s: %w", resourceID, threadIDs[i], err)
		}
		if thread == nil || thread.ResourceID != resourceID {
			dangling = append(dangling, threadIDs[i])
			continue
		}
		threads = append(threads, *thread)
	}

	if len(dangling) > 0 {
		if err := s.backend.SRem(ctx, indexKey, dangling...); err != nil {
			s.logger.Warn("failed to prune resource index", "resource_id", resourceID, "count", len(dangling), "error", err)
		} else {
			s.logger.Info("pruned resource index", "resource_id", resourceID, "thread_ids", dangling)
		}
	}

	sortByRecency(threads)
	return threads, nil
}

// UpdateThread applies update to the thread and stamps UpdatedAt. It returns
// nil if the thread does not exist and ErrConflict if the record was changed
// concurrently.
func (s *ThreadStore) UpdateThread(ctx context.Context, id string, update ThreadUpdate) (*Thread, error) {
	var updated *Thread

	err := s.backend.UpdateHash(ctx, threadKey(id), func(current map[string]string) (map[string]string, error) {
		thread, err := decodeThread(current)
		if err != nil || thread == nil {
			return nil, err
		}

		if update.Title != nil {
			thread.Title = *update.Title
		}
		if update.Metadata != nil {
			thread.Metadata = update.Metadata
		}
		thread.UpdatedAt = s.stamp(thread.UpdatedAt, s.now())

		fields, err := encodeThread(thread)
		if err != nil {
			return nil, err
		}
		if thread.Metadata, err = decodeMetadata(fields[fieldMetadata]); err != nil {
			return nil, err
		}

		updated = thread
		return fields, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: update thread %s: %w", id, err)
	}

	return updated, nil
}

// DeleteThread removes the thread, its messages and its index entry. It
// returns false if the thread did not exist.
func (s *ThreadStore) DeleteThread(ctx context.Context, id string) (bool, error) {
	thread, err := s.GetThreadByID(ctx, id)
	if err != nil {
		return false, err
	}
	if thread == nil {
		return false, nil
	}
	return true, s.deleteThread(ctx, thread)
}

func (s *ThreadStore) deleteThread(ctx context.Context, thread *Thread) error {
	id := thread.ID
	messageIDs, err := s.backend.LRange(ctx, threadMessagesKey(id), 0, -1)
	if err != nil {
		return fmt.Errorf("store: delete thread %s: %w", id, err)
	}

	err = s.backend.Batch(ctx, func(tx backend.Batch) {
		tx.SRem(resourceThreadsKey(thread.ResourceID), id)
		tx.Del(threadMessagesKey(id))
		tx.Del(messageKeys(messageIDs)...)
		tx.Del(threadKey(id))
	})
	if err != nil {
		return fmt.Errorf("store: delete thread %s: %w", id, err)
	}

	s.logger.Debug("thread deleted", "thread_id", id, "resource_id", thread.ResourceID, "messages", len(messageIDs))
	return nil
}

// DeleteThreadsByResourceID deletes every thread registered for resourceID
// and returns how many were removed. Only the ids read from the index are
// touched, so a thread created meanwhile stays listed. Index entries that
// do not resolve to a thread of this resource are dropped from the index
// without deleting anything else.
func (s *ThreadStore) DeleteThreadsByResourceID(ctx context.Context, resourceID string) (int, error) {
	indexKey := resourceThreadsKey(resourceID)

	threadIDs, err := s.backend.SMembers(ctx, indexKey)
	if err != nil {
		return 0, fmt.Errorf("store: clear resource %s: %w", resourceID, err)
	}

	deleted := 0
	var dangling []string
	for _, id := range threadIDs {
		thread, err := s.GetThreadByID(ctx, id)
		if err != nil {
			return deleted, err
		}
		if thread == nil || thread.ResourceID != resourceID {
			dangling = append(dangling, id)
			continue
		}
		if err := s.deleteThread(ctx, thread); err != nil {
			return deleted, err
		}
		deleted++
	}

	if err := s.backend.SRem(ctx, indexKey, dangling...); err != nil {
		return deleted, fmt.Errorf("store: clear resource %s: %w", resourceID, err)
	}

	s.logger.Info("resource cleared", "resource_id", resourceID, "threads", deleted, "pruned", len(dangling))
	return deleted, nil
}

// touch queues an updatedAt refresh for thread on tx and returns the new
// value.
func (s *ThreadStore) touch(tx backend.Batch, thread *Thread, at time.Time) time.Time {
	updatedAt := s.stamp(thread.UpdatedAt, at)
	tx.HSet(threadKey(thread.ID), map[string]string{fieldUpdatedAt: formatTime(updatedAt)})
	return updatedAt
}

// stamp returns at, or the instant just after prev when the clock has not
// advanced past it, so updatedAt strictly increases on every write.
func (s *ThreadStore) stamp(prev, at time.Time) time.Time {
	if !at.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return at
}

func sortByRecency(threads []Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].ID > threads[j].ID
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}
