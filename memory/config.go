package memory

import (
	"errors"
	"fmt"
)

const (
	// DefaultLastMessages is the retrieval window used when a caller does not
	// ask for a specific number of messages.
	DefaultLastMessages = 15

	// DefaultMaxAllMessages caps All() queries.
	DefaultMaxAllMessages = 1000
)

var (
	// ErrSemanticRecallUnsupported is returned by New when semantic recall is
	// requested. Only recency-based recall is implemented.
	ErrSemanticRecallUnsupported = errors.New("memory: semantic recall is not supported")

	// ErrFlushDisabled is returned by Clear when whole-store flushing has not
	// been enabled.
	ErrFlushDisabled = errors.New("memory: flush is disabled")
)

// Config holds the adapter defaults.
type Config struct {
	// LastMessages is the default retrieval window. Default: 15
	LastMessages int `yaml:"last_messages,omitempty"`

	// SemanticRecall must be false; embedding-based recall is not available.
	SemanticRecall bool `yaml:"semantic_recall,omitempty"`

	// MaxAllMessages bounds the number of messages returned by All().
	// Default: 1000
	MaxAllMessages int `yaml:"max_all_messages,omitempty"`

	// AllowFlush enables Clear, which deletes every key in the backend.
	AllowFlush bool `yaml:"allow_flush,omitempty"`
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		LastMessages:   DefaultLastMessages,
		MaxAllMessages: DefaultMaxAllMessages,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}
	if source.LastMessages != 0 {
		c.LastMessages = source.LastMessages
	}
	if source.MaxAllMessages != 0 {
		c.MaxAllMessages = source.MaxAllMessages
	}
	if source.SemanticRecall {
		c.SemanticRecall = true
	}
	if source.AllowFlush {
		c.AllowFlush = true
	}
}

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	if c.SemanticRecall {
		return ErrSemanticRecallUnsupported
	}
	if c.LastMessages < 0 {
		return fmt.Errorf("memory: last_messages must not be negative, got %d", c.LastMessages)
	}
	if c.MaxAllMessages < 0 {
		return fmt.Errorf("memory: max_all_messages must not be negative, got %d", c.MaxAllMessages)
	}
	return nil
}
