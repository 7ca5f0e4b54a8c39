package memory_test

import (
	"testing"

	"github.com/flemzord/crosstalk/internal/memory"
)

func TestDecode_LabelBlock(t *testing.T) {
	t.Parallel()

	raw := "Sure, here's my take...\n---MEMORY---\nTopic: X\n---END MEMORY---"
	reply, update := memory.Decode(raw)

	if reply != "Sure, here's my take..." {
		t.Errorf("reply = %q, want %q", reply, "Sure, here's my take...")
	}
	if update == nil {
		t.Fatal("update = nil, want a summary")
	}
	if update.Topic != "X" {
		t.Errorf("Topic = %q, want %q", update.Topic, "X")
	}
}

func TestDecode_LabelSynonymsAndLists(t *testing.T) {
	t.Parallel()

	raw := "Reply text here.\n" +
		"---MEMORY---\n" +
		"Subject: Database migration\n" +
		"GOAL: Move to Postgres\n" +
		"Next step: Write the migration script\n" +
		"Key facts: Dataset is 40GB; downtime window is 2h\n" +
		"Decisions made: Use pgloader\n" +
		"Entities: pgloader/tool/migration utility; MySQL/system\n" +
		"Questions: Who owns the replica?\n" +
		"Requirements: No data loss\n" +
		"---END MEMORY---"

	_, update := memory.Decode(raw)
	if update == nil {
		t.Fatal("update = nil, want a summary")
	}

	if update.Topic != "Database migration" {
		t.Errorf("Topic = %q", update.Topic)
	}
	if update.UserGoal != "Move to Postgres" {
		t.Errorf("UserGoal = %q", update.UserGoal)
	}
	if update.CurrentTask != "Write the migration script" {
		t.Errorf("CurrentTask = %q", update.CurrentTask)
	}
	if len(update.ImportantFacts) != 2 {
		t.Fatalf("%d facts, want 2: %v", len(update.ImportantFacts), update.ImportantFacts)
	}
	if len(update.DecisionsMade) != 1 || update.DecisionsMade[0] != "Use pgloader" {
		t.Errorf("DecisionsMade = %v", update.DecisionsMade)
	}
	if len(update.Entities) != 2 {
		t.Fatalf("%d entities, want 2: %v", len(update.Entities), update.Entities)
	}
	if e := update.Entities[0]; e.Name != "pgloader" || e.Type != "tool" || e.Summary != "migration utility" {
		t.Errorf("entity[0] = %+v, want pgloader/tool/migration utility", e)
	}
	if e := update.Entities[1]; e.Name != "MySQL" || e.Type != "system" || e.Summary != "" {
		t.Errorf("entity[1] = %+v, want MySQL/system", e)
	}
	if len(update.OpenQuestions) != 1 {
		t.Errorf("OpenQuestions = %v", update.OpenQuestions)
	}
	if len(update.Constraints) != 1 || update.Constraints[0] != "No data loss" {
		t.Errorf("Constraints = %v", update.Constraints)
	}
}

func TestDecode_JSONBlock(t *testing.T) {
	t.Parallel()

	raw := "Here you go.\n" +
		"---MEMORY---\n" +
		`{"topic": "Chess opening prep", "decisions_made": ["Play the Caro-Kann"], ` +
		`"entities": [{"name": "Caro-Kann", "type": "concept", "summary": "opening"}, "Stockfish/tool"]}` +
		"\n---END MEMORY---"

	reply, update := memory.Decode(raw)
	if reply != "Here you go." {
		t.Errorf("reply = %q", reply)
	}
	if update == nil {
		t.Fatal("update = nil, want a summary")
	}
	if update.Topic != "Chess opening prep" {
		t.Errorf("Topic = %q", update.Topic)
	}
	if len(update.DecisionsMade) != 1 {
		t.Errorf("DecisionsMade = %v", update.DecisionsMade)
	}
	if len(update.Entities) != 2 {
		t.Fatalf("%d entities, want 2", len(update.Entities))
	}
	if update.Entities[1].Name != "Stockfish" || update.Entities[1].Type != "tool" {
		t.Errorf("entity[1] = %+v", update.Entities[1])
	}
}

func TestDecode_Degradation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string // expected reply
	}{
		{"no markers", "  Just a plain answer.  ", "Just a plain answer."},
		{"start without end", "Answer\n---MEMORY---\nTopic: X", "Answer\n---MEMORY---\nTopic: X"},
		{"end without start", "Answer\n---END MEMORY---", "Answer\n---END MEMORY---"},
		{"malformed json", "Answer\n---MEMORY---\n{not json\n---END MEMORY---", "Answer"},
		{"empty block", "Answer\n---MEMORY---\n\n---END MEMORY---", "Answer"},
		{"all-empty labels", "Answer\n---MEMORY---\nTopic:\nFacts:\n---END MEMORY---", "Answer"},
		{"unknown labels only", "Answer\n---MEMORY---\nMood: excellent\n---END MEMORY---", "Answer"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reply, update := memory.Decode(tc.raw)
			if reply != tc.want {
				t.Errorf("reply = %q, want %q", reply, tc.want)
			}
			if update != nil {
				t.Errorf("update = %+v, want nil", update)
			}
		})
	}
}

func TestDecode_ReplyOnlyBeforeMarkers(t *testing.T) {
	t.Parallel()

	raw := "Line one.\nLine two.\n\n---MEMORY---\nTopic: Y\n---END MEMORY---\ntrailing noise"
	reply, update := memory.Decode(raw)

	if reply != "Line one.\nLine two." {
		t.Errorf("reply = %q, want text before the markers only", reply)
	}
	if update == nil || update.Topic != "Y" {
		t.Errorf("update = %+v, want Topic=Y", update)
	}
}
