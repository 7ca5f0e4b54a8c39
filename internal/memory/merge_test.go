package memory_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/flemzord/crosstalk/internal/memory"
)

func TestMerge_ScalarsOverwriteOnlyNonEmpty(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mem := memory.New(now)

	mem.Merge(memory.Summary{Topic: "Trip planning", UserGoal: "Book a holiday"}, now)
	mem.Merge(memory.Summary{Topic: "", CurrentTask: "Compare hotels"}, now.Add(time.Second))

	if mem.Topic != "Trip planning" {
		t.Errorf("Topic = %q, want %q (empty incoming value must not overwrite)", mem.Topic, "Trip planning")
	}
	if mem.UserGoal != "Book a holiday" {
		t.Errorf("UserGoal = %q, want %q", mem.UserGoal, "Book a holiday")
	}
	if mem.CurrentTask != "Compare hotels" {
		t.Errorf("CurrentTask = %q, want %q", mem.CurrentTask, "Compare hotels")
	}
	if mem.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", mem.IterationCount)
	}
	if mem.UpdatedAt.Before(mem.CreatedAt) {
		t.Errorf("UpdatedAt %v is before CreatedAt %v", mem.UpdatedAt, mem.CreatedAt)
	}
}

func TestMerge_EntityIdentityCaseInsensitive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mem := memory.New(now)

	mem.Merge(memory.Summary{
		Topic:    "Trip planning",
		Entities: []memory.SummaryEntity{{Name: "Paris", Type: "tool", Summary: "destination"}},
	}, now)

	if len(mem.Entities) != 1 {
		t.Fatalf("after first merge: %d entities, want 1", len(mem.Entities))
	}
	if mem.Entities[0].Mentions != 1 {
		t.Fatalf("Mentions = %d, want 1", mem.Entities[0].Mentions)
	}

	mem.Merge(memory.Summary{
		Entities: []memory.SummaryEntity{{Name: "paris", Summary: "updated"}},
	}, now.Add(time.Second))

	if len(mem.Entities) != 1 {
		t.Fatalf("after second merge: %d entities, want 1 (name match is case-insensitive)", len(mem.Entities))
	}
	e := mem.Entities[0]
	if e.Name != "Paris" {
		t.Errorf("Name = %q, want original casing %q", e.Name, "Paris")
	}
	if e.Mentions != 2 {
		t.Errorf("Mentions = %d, want 2", e.Mentions)
	}
	if e.Summary != "updated" {
		t.Errorf("Summary = %q, want %q", e.Summary, "updated")
	}
	if e.Type != "tool" {
		t.Errorf("Type = %q, want %q (empty incoming type must not overwrite)", e.Type, "tool")
	}
}

func TestMerge_SameSummaryTwice(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mem := memory.New(now)
	s := memory.Summary{
		Entities:      []memory.SummaryEntity{{Name: "Redis", Type: "tool"}},
		DecisionsMade: []string{"Use Redis for caching"},
		Constraints:   []string{"Budget under $50/mo"},
	}

	mem.Merge(s, now)
	mem.Merge(s, now.Add(time.Second))

	if len(mem.Entities) != 1 {
		t.Errorf("%d entities, want 1 (idempotent on identity)", len(mem.Entities))
	}
	if mem.Entities[0].Mentions != 2 {
		t.Errorf("Mentions = %d, want 2 (not idempotent on mentions)", mem.Entities[0].Mentions)
	}
	if len(mem.Decisions) != 1 {
		t.Errorf("%d decisions, want 1", len(mem.Decisions))
	}
	if len(mem.Constraints) != 1 {
		t.Errorf("%d constraints, want 1", len(mem.Constraints))
	}
}

func TestMerge_FuzzyDuplicateSuppression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing string
		incoming string
		want     int // decisions after second merge
	}{
		{"exact", "use postgres", "use postgres", 1},
		{"case insensitive", "Use Postgres", "use postgres", 1},
		{"incoming contains existing", "use postgres", "we should use postgres for storage", 1},
		{"existing contains incoming", "we should use postgres for storage", "use postgres", 1},
		{"distinct", "use postgres", "deploy on fridays", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			now := time.Now()
			mem := memory.New(now)
			mem.Merge(memory.Summary{DecisionsMade: []string{tc.existing}}, now)
			mem.Merge(memory.Summary{DecisionsMade: []string{tc.incoming}}, now.Add(time.Second))

			if len(mem.Decisions) != tc.want {
				t.Errorf("%d decisions, want %d", len(mem.Decisions), tc.want)
			}
		})
	}
}

func TestMerge_CapsHoldAfterEveryMerge(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mem := memory.New(now)

	for i := 0; i < 60; i++ {
		mem.Merge(memory.Summary{
			Entities:      []memory.SummaryEntity{{Name: fmt.Sprintf("entity-%d", i)}},
			DecisionsMade: []string{fmt.Sprintf("decision %d", i)},
			OpenQuestions: []string{fmt.Sprintf("question %d", i)},
			Constraints:   []string{fmt.Sprintf("constraint %d", i)},
		}, now.Add(time.Duration(i)*time.Second))

		if len(mem.Entities) > memory.MaxEntities {
			t.Fatalf("merge %d: %d entities exceeds cap %d", i, len(mem.Entities), memory.MaxEntities)
		}
		if len(mem.Decisions) > memory.MaxDecisions {
			t.Fatalf("merge %d: %d decisions exceeds cap %d", i, len(mem.Decisions), memory.MaxDecisions)
		}
		if len(mem.OpenQuestions) > memory.MaxOpenQuestions {
			t.Fatalf("merge %d: %d open questions exceeds cap %d", i, len(mem.OpenQuestions), memory.MaxOpenQuestions)
		}
		if len(mem.Constraints) > memory.MaxConstraints {
			t.Fatalf("merge %d: %d constraints exceeds cap %d", i, len(mem.Constraints), memory.MaxConstraints)
		}
	}
}

func TestEvict_KeepsHighestRankedEntities(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mem := memory.New(now)

	// One heavily-mentioned entity, inserted first so insertion order
	// cannot be what saves it.
	for i := 0; i < 5; i++ {
		mem.Merge(memory.Summary{
			Entities: []memory.SummaryEntity{{Name: "anchor"}},
		}, now.Add(time.Duration(i)*time.Millisecond))
	}

	// Flood with single-mention entities, newest last.
	for i := 0; i < memory.MaxEntities+10; i++ {
		mem.Merge(memory.Summary{
			Entities: []memory.SummaryEntity{{Name: fmt.Sprintf("filler-%d", i)}},
		}, now.Add(time.Duration(i+10)*time.Second))
	}

	if len(mem.Entities) != memory.MaxEntities {
		t.Fatalf("%d entities, want exactly %d", len(mem.Entities), memory.MaxEntities)
	}

	found := false
	for _, e := range mem.Entities {
		if e.Name == "anchor" {
			found = true
			if e.Mentions != 5 {
				t.Errorf("anchor Mentions = %d, want 5", e.Mentions)
			}
		}
	}
	if !found {
		t.Error("anchor entity evicted despite highest mention count")
	}
}

func TestEvict_DropsOldestListEntriesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mem := memory.New(now)
	for i := 0; i < memory.MaxDecisions+5; i++ {
		mem.Decisions = append(mem.Decisions, memory.Item{
			Text:    fmt.Sprintf("decision %d", i),
			AddedAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	mem.Evict()

	if len(mem.Decisions) != memory.MaxDecisions {
		t.Fatalf("%d decisions, want %d", len(mem.Decisions), memory.MaxDecisions)
	}
	if got, want := mem.Decisions[0].Text, "decision 5"; got != want {
		t.Errorf("oldest surviving decision = %q, want %q (drop from the front)", got, want)
	}
	if got, want := mem.Decisions[len(mem.Decisions)-1].Text, fmt.Sprintf("decision %d", memory.MaxDecisions+4); got != want {
		t.Errorf("newest surviving decision = %q, want %q (survivor order preserved)", got, want)
	}

	before := make([]memory.Item, len(mem.Decisions))
	copy(before, mem.Decisions)
	mem.Evict()
	for i := range before {
		if mem.Decisions[i] != before[i] {
			t.Fatalf("second Evict changed decision %d: %+v != %+v", i, mem.Decisions[i], before[i])
		}
	}
}
