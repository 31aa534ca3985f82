package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zero-day-ai/coachmem/backend"
	"github.com/zero-day-ai/coachmem/ids"
)

// MessageStore manages message records and the per-thread message lists.
type MessageStore struct {
	backend backend.Backend
	threads *ThreadStore
	ids     ids.Generator
	now     func() time.Time
	logger  *slog.Logger
}

// NewMessageStore creates a MessageStore on top of b. threads is used to
// check that a thread exists and to refresh its updatedAt on append.
func NewMessageStore(b backend.Backend, threads *ThreadStore, opts ...Option) *MessageStore {
	o := buildOptions(opts)
	return &MessageStore{
		backend: b,
		threads: threads,
		ids:     o.ids,
		now:     o.now,
		logger:  o.logger.With("component", "message_store"),
	}
}

// AddMessage appends a message to the head of the thread's list and
// refreshes the thread's updatedAt. The record, the list push and the touch
// are written in one batch.
func (s *MessageStore) AddMessage(ctx context.Context, threadID string, role Role, content string, metadata map[string]any) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	thread, err := s.threads.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	msg := &Message{
		ID:        s.ids.NewID(),
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
		Metadata:  metadata,
	}

	fields, err := encodeMessage(msg)
	if err != nil {
		return nil, err
	}
	if msg.Metadata, err = decodeMetadata(fields[fieldMetadata]); err != nil {
		return nil, err
	}

	err = s.backend.Batch(ctx, func(tx backend.Batch) {
		tx.HSet(messageKey(msg.ID), fields)
		tx.LPush(threadMessagesKey(threadID), msg.ID)
		s.threads.touch(tx, thread, msg.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("store: add message to %s: %w", threadID, err)
	}

	s.logger.Debug("message added", "thread_id", threadID, "message_id", msg.ID, "role", role)
	return msg, nil
}

// GetMessages returns a window of the thread's messages, newest first.
// Ids whose record is missing are skipped.
func (s *MessageStore) GetMessages(ctx context.Context, threadID string, page Page) ([]Message, error) {
	page = page.normalize()

	start := int64(page.Offset)
	stop := start + int64(page.Limit) - 1
	messageIDs, err := s.backend.LRange(ctx, threadMessagesKey(threadID), start, stop)
	if err != nil {
		return nil, fmt.Errorf("store: get messages of %s: %w", threadID, err)
	}

	return s.resolve(ctx, threadID, messageIDs)
}

// GetLastMessages returns the count newest messages, newest first.
func (s *MessageStore) GetLastMessages(ctx context.Context, threadID string, count int) ([]Message, error) {
	return s.GetMessages(ctx, threadID, Page{Limit: count})
}

// GetFirstMessages returns the count oldest messages in the order they were
// appended.
func (s *MessageStore) GetFirstMessages(ctx context.Context, threadID string, count int) ([]Message, error) {
	if count <= 0 {
		count = DefaultPageLimit
	}

	messageIDs, err := s.backend.LRange(ctx, threadMessagesKey(threadID), -int64(count), -1)
	if err != nil {
		return nil, fmt.Errorf("store: get first messages of %s: %w", threadID, err)
	}

	for i, j := 0, len(messageIDs)-1; i < j; i, j = i+1, j-1 {
		messageIDs[i], messageIDs[j] = messageIDs[j], messageIDs[i]
	}

	return s.resolve(ctx, threadID, messageIDs)
}

// CountMessages returns the number of messages in the thread's list.
func (s *MessageStore) CountMessages(ctx context.Context, threadID string) (int64, error) {
	n, err := s.backend.LLen(ctx, threadMessagesKey(threadID))
	if err != nil {
		return 0, fmt.Errorf("store: count messages of %s: %w", threadID, err)
	}
	return n, nil
}

func (s *MessageStore) resolve(ctx context.Context, threadID string, messageIDs []string) ([]Message, error) {
	if len(messageIDs) == 0 {
		return []Message{}, nil
	}

	records, err := s.backend.HGetAllMany(ctx, messageKeys(messageIDs))
	if err != nil {
		return nil, fmt.Errorf("store: resolve messages of %s: %w", threadID, err)
	}

	messages := make([]Message, 0, len(records))
	for i, fields := range records {
		msg, err := decodeMessage(fields)
		if err != nil {
			return nil, fmt.Errorf("store: resolve message %s: %w", messageIDs[i], err)
		}
		if msg == nil {
			continue
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}
