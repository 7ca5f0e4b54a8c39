package memory

import (
	"sort"
	"strings"
	"time"
)

// Merge folds an incoming summary into the memory. Scalar fields are
// overwritten only by non-empty values. Entities are matched by
// case/whitespace-insensitive name: a match increments Mentions and
// refreshes LastUpdated, overwriting Type/Summary only when the incoming
// value is non-empty; a miss appends a new entity with Mentions = 1.
// Decisions and open questions are appended unless they fuzzy-duplicate
// an existing entry; constraints deduplicate by exact match. Eviction
// runs unconditionally afterwards so every bounded field satisfies its
// capacity on return.
func (m *ConversationMemory) Merge(s Summary, now time.Time) {
	if v := strings.TrimSpace(s.Topic); v != "" {
		m.Topic = v
	}
	if v := strings.TrimSpace(s.UserGoal); v != "" {
		m.UserGoal = v
	}
	if v := strings.TrimSpace(s.CurrentTask); v != "" {
		m.CurrentTask = v
	}

	for _, in := range s.Entities {
		m.mergeEntity(in, now)
	}

	m.Decisions = appendUnlessFuzzy(m.Decisions, s.DecisionsMade, now)
	m.OpenQuestions = appendUnlessFuzzy(m.OpenQuestions, s.OpenQuestions, now)

	for _, c := range s.Constraints {
		c = strings.TrimSpace(c)
		if c == "" || containsExact(m.Constraints, c) {
			continue
		}
		m.Constraints = append(m.Constraints, c)
	}

	m.IterationCount++
	if now.After(m.UpdatedAt) {
		m.UpdatedAt = now
	}

	m.Evict()
}

func (m *ConversationMemory) mergeEntity(in SummaryEntity, now time.Time) {
	key := entityKey(in.Name)
	if key == "" {
		return
	}
	for i := range m.Entities {
		if entityKey(m.Entities[i].Name) != key {
			continue
		}
		m.Entities[i].Mentions++
		m.Entities[i].LastUpdated = now
		if v := strings.TrimSpace(in.Type); v != "" {
			m.Entities[i].Type = v
		}
		if v := strings.TrimSpace(in.Summary); v != "" {
			m.Entities[i].Summary = v
		}
		return
	}
	m.Entities = append(m.Entities, Entity{
		Name:        strings.TrimSpace(in.Name),
		Type:        strings.TrimSpace(in.Type),
		Summary:     strings.TrimSpace(in.Summary),
		Mentions:    1,
		LastUpdated: now,
	})
}

// appendUnlessFuzzy appends each incoming string as an Item unless it is
// a fuzzy duplicate of an entry already in the list. Incoming values are
// also checked against each other, so one batch cannot introduce
// duplicates of itself.
func appendUnlessFuzzy(items []Item, incoming []string, now time.Time) []Item {
	for _, text := range incoming {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		dup := false
		for i := range items {
			if fuzzyEqual(items[i].Text, text) {
				dup = true
				break
			}
		}
		if !dup {
			items = append(items, Item{Text: text, AddedAt: now})
		}
	}
	return items
}

// fuzzyEqual reports whether two strings are exact matches or either is
// a substring of the other, ignoring case. Intentionally permissive:
// the engine prefers suppressing near-duplicates over keeping every
// distinct phrasing.
func fuzzyEqual(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return la == lb || strings.Contains(la, lb) || strings.Contains(lb, la)
}

func containsExact(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// Evict trims every bounded field back to its capacity. Entities keep
// the most-referenced, most-recently-touched entries; the list fields
// drop from the front (oldest first). Idempotent, and entries that
// survive keep their relative order.
func (m *ConversationMemory) Evict() {
	if len(m.Entities) > MaxEntities {
		ranked := make([]Entity, len(m.Entities))
		copy(ranked, m.Entities)
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Mentions != ranked[j].Mentions {
				return ranked[i].Mentions > ranked[j].Mentions
			}
			return ranked[i].LastUpdated.After(ranked[j].LastUpdated)
		})
		keep := make(map[string]struct{}, MaxEntities)
		for _, e := range ranked[:MaxEntities] {
			keep[entityKey(e.Name)] = struct{}{}
		}
		survivors := m.Entities[:0]
		for _, e := range m.Entities {
			if _, ok := keep[entityKey(e.Name)]; ok {
				survivors = append(survivors, e)
			}
		}
		m.Entities = survivors
	}

	if n := len(m.Decisions) - MaxDecisions; n > 0 {
		m.Decisions = append([]Item(nil), m.Decisions[n:]...)
	}
	if n := len(m.OpenQuestions) - MaxOpenQuestions; n > 0 {
		m.OpenQuestions = append([]Item(nil), m.OpenQuestions[n:]...)
	}
	if n := len(m.Constraints) - MaxConstraints; n > 0 {
		m.Constraints = append([]string(nil), m.Constraints[n:]...)
	}
}
