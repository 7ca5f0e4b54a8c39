package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/crosstalk/internal/memory"
)

// Load retrieves the memory state for a conversation. Returns
// memory.ErrNotFound for an unknown conversation and a wrapped error
// when the stored JSON no longer parses, so the caller can fall back to
// fresh state.
func (s *convStore) Load(ctx context.Context, conversationID string) (*memory.ConversationMemory, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM conversations WHERE conversation_id = ?",
		conversationID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load conversation %s: %w", conversationID, err)
	}

	var mem memory.ConversationMemory
	if err := json.Unmarshal([]byte(state), &mem); err != nil {
		return nil, fmt.Errorf("sqlite: corrupt state for conversation %s: %w", conversationID, err)
	}
	return &mem, nil
}

// Save upserts the memory state for a conversation.
func (s *convStore) Save(ctx context.Context, conversationID string, mem *memory.ConversationMemory) error {
	state, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("sqlite: marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`,
		conversationID, string(state), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save conversation %s: %w", conversationID, err)
	}
	return nil
}

// Len returns the number of stored conversations.
func (s *convStore) Len() int {
	var n int
	if err := s.db.QueryRowContext(context.TODO(), "SELECT count(*) FROM conversations").Scan(&n); err != nil {
		return 0
	}
	return n
}
