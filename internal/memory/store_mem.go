package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is a thread-safe, in-memory implementation of Store. Used
// when no persistent memory module is configured; records do not
// survive a restart.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemStore creates a new empty store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte)}
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// Load returns a deep copy of the stored memory, or ErrNotFound.
// Copying keeps callers from mutating shared state between saves.
func (s *MemStore) Load(_ context.Context, conversationID string) (*ConversationMemory, error) {
	s.mu.RLock()
	raw, ok := s.records[conversationID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var mem ConversationMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		return nil, fmt.Errorf("memory: decoding record %q: %w", conversationID, err)
	}
	return &mem, nil
}

// Save replaces the record for the conversation.
func (s *MemStore) Save(_ context.Context, conversationID string, mem *ConversationMemory) error {
	raw, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("memory: encoding record %q: %w", conversationID, err)
	}

	s.mu.Lock()
	s.records[conversationID] = raw
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored conversations.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
