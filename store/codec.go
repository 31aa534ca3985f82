package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Hash field names. They match the camelCase names written by other clients
// of the same key space.
const (
	fieldID         = "id"
	fieldResourceID = "resourceId"
	fieldThreadID   = "threadId"
	fieldTitle      = "title"
	fieldMetadata   = "metadata"
	fieldRole       = "role"
	fieldContent    = "content"
	fieldCreatedAt  = "createdAt"
	fieldUpdatedAt  = "updatedAt"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: field %s: %v", ErrMalformedRecord, field, err)
	}
	return t.UTC(), nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("store: encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(value string) (map[string]any, error) {
	if value == "" || value == "null" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(value), &metadata); err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrMalformedRecord, fieldMetadata, err)
	}
	return metadata, nil
}

func encodeThread(t *Thread) (map[string]string, error) {
	metadata, err := encodeMetadata(t.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		fieldID:         t.ID,
		fieldResourceID: t.ResourceID,
		fieldTitle:      t.Title,
		fieldMetadata:   metadata,
		fieldCreatedAt:  formatTime(t.CreatedAt),
		fieldUpdatedAt:  formatTime(t.UpdatedAt),
	}, nil
}

// decodeThread returns nil for an empty hash or one without an id, which is
// what a touch racing a delete can leave behind.
func decodeThread(fields map[string]string) (*Thread, error) {
	if len(fields) == 0 || fields[fieldID] == "" {
		return nil, nil
	}

	createdAt, err := parseTime(fieldCreatedAt, fields[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(fieldUpdatedAt, fields[fieldUpdatedAt])
	if err != nil {
		return nil, err
	}
	metadata, err := decodeMetadata(fields[fieldMetadata])
	if err != nil {
		return nil, err
	}

	return &Thread{
		ID:         fields[fieldID],
		ResourceID: fields[fieldResourceID],
		Title:      fields[fieldTitle],
		Metadata:   metadata,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func encodeMessage(m *Message) (map[string]string, error) {
	metadata, err := encodeMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		fieldID:        m.ID,
		fieldThreadID:  m.ThreadID,
		fieldRole:      string(m.Role),
		fieldContent:   m.Content,
		fieldCreatedAt: formatTime(m.CreatedAt),
		fieldMetadata:  metadata,
	}, nil
}

func decodeMessage(fields map[string]string) (*Message, error) {
	if len(fields) == 0 || fields[fieldID] == "" {
		return nil, nil
	}

	createdAt, err := parseTime(fieldCreatedAt, fields[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	metadata, err := decodeMetadata(fields[fieldMetadata])
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        fields[fieldID],
		ThreadID:  fields[fieldThreadID],
		Role:      Role(fields[fieldRole]),
		Content:   fields[fieldContent],
		CreatedAt: createdAt,
		Metadata:  metadata,
	}, nil
}
