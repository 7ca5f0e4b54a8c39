package memory

import (
	"context"
	"errors"
)

// ErrNotFound indicates no memory exists for the conversation ID.
var ErrNotFound = errors.New("memory: conversation not found")

// Store persists one ConversationMemory per conversation ID with
// last-write-wins semantics. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the memory for the conversation, or ErrNotFound.
	Load(ctx context.Context, conversationID string) (*ConversationMemory, error)

	// Save writes the memory for the conversation, replacing any
	// previous record.
	Save(ctx context.Context, conversationID string, mem *ConversationMemory) error

	// Len returns the number of stored conversations.
	Len() int
}
