// Package memory implements the consolidation engine for cross-agent
// conversation memory: merging untrusted summaries into a durable
// per-conversation record, bounding its growth, serializing it into a
// context block for the next agent, and decoding a raw agent reply back
// into a conversational answer plus an optional memory update.
package memory

import (
	"strings"
	"time"
)

// Per-category capacity limits enforced after every merge.
const (
	MaxEntities      = 30
	MaxDecisions     = 20
	MaxOpenQuestions = 10
	MaxConstraints   = 15
)

// Entity is a named thing the conversation keeps referring to.
// Uniqueness is by case-insensitive, whitespace-trimmed Name.
type Entity struct {
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Mentions    int       `json:"mentions"`
	LastUpdated time.Time `json:"last_updated"`
}

// Item is a timestamped list entry. Insertion order is meaningful
// (oldest first); eviction drops from the front.
type Item struct {
	Text    string    `json:"text"`
	AddedAt time.Time `json:"added_at"`
}

// ConversationMemory is the durable record for one logical conversation,
// identified by a conversation ID that is propagated across handoffs.
type ConversationMemory struct {
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Topic          string    `json:"topic,omitempty"`
	UserGoal       string    `json:"user_goal,omitempty"`
	CurrentTask    string    `json:"current_task,omitempty"`
	Entities       []Entity  `json:"entities,omitempty"`
	Decisions      []Item    `json:"decisions,omitempty"`
	OpenQuestions  []Item    `json:"open_questions,omitempty"`
	Constraints    []string  `json:"constraints,omitempty"`
	IterationCount int       `json:"iteration_count"`
}

// New creates an empty ConversationMemory stamped at now.
func New(now time.Time) *ConversationMemory {
	return &ConversationMemory{
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SummaryEntity is the entity shape inside an incoming Summary.
type SummaryEntity struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Summary is the untrusted, partially-typed self-reflection an agent
// produces at the end of a turn. All fields are optional; the merge and
// decode functions normalize at the boundary and never trust the shape.
type Summary struct {
	Topic          string          `json:"topic,omitempty"`
	UserGoal       string          `json:"user_goal,omitempty"`
	CurrentTask    string          `json:"current_task,omitempty"`
	ImportantFacts []string        `json:"important_facts,omitempty"`
	DecisionsMade  []string        `json:"decisions_made,omitempty"`
	Entities       []SummaryEntity `json:"entities,omitempty"`
	OpenQuestions  []string        `json:"open_questions,omitempty"`
	Constraints    []string        `json:"constraints,omitempty"`
}

// IsEmpty reports whether the summary carries no usable content.
func (s Summary) IsEmpty() bool {
	if strings.TrimSpace(s.Topic) != "" ||
		strings.TrimSpace(s.UserGoal) != "" ||
		strings.TrimSpace(s.CurrentTask) != "" {
		return false
	}
	if anyNonEmpty(s.ImportantFacts) || anyNonEmpty(s.DecisionsMade) ||
		anyNonEmpty(s.OpenQuestions) || anyNonEmpty(s.Constraints) {
		return false
	}
	for _, e := range s.Entities {
		if strings.TrimSpace(e.Name) != "" {
			return false
		}
	}
	return true
}

func anyNonEmpty(list []string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// entityKey is the canonical form used for entity identity.
func entityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
