package memory

import (
	"strings"
	"time"
)

// Marker strings delimiting the memory note an agent appends to its
// reply. The exact pair is load-bearing: Decode looks for these bytes
// and every adapter prompt template embeds them verbatim.
const (
	MarkerStart = "---MEMORY---"
	MarkerEnd   = "---END MEMORY---"
)

const (
	notesHeader = "=== CONVERSATION NOTES ==="
	notesFooter = "=== END NOTES ==="
)

// metaPatterns flag strings that describe the summarization process
// itself rather than real user content. Such strings are dropped from
// current_task and constraints before formatting; letting them through
// causes a feedback loop where the next agent degrades into replying
// with formatting instructions instead of substance.
var metaPatterns = []string{
	"json",
	"structured output",
	"no other text",
	"browser extension",
	"memory note",
	"summarize this conversation",
	"respond only with",
	strings.ToLower(MarkerStart),
}

// isMetaInstruction reports whether s matches any meta pattern.
func isMetaInstruction(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range metaPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// stripMarkers removes the literal marker strings from a value so notes
// content can never produce a spurious memory block in the prompt.
func stripMarkers(s string) string {
	s = strings.ReplaceAll(s, MarkerStart, "")
	s = strings.ReplaceAll(s, MarkerEnd, "")
	return strings.TrimSpace(s)
}

// Format serializes the memory into the context block handed to the
// next agent: a conversational opener, a delimited notes section, an
// instruction that the notes are background only, and the memory-note
// template the agent is asked to fill in.
func Format(m *ConversationMemory) string {
	var b strings.Builder

	b.WriteString("You're joining a conversation the user has been having with another AI assistant. Here is where things stand.\n\n")
	b.WriteString(notesHeader)
	b.WriteString("\n")

	writeScalar(&b, "Topic", m.Topic)
	writeScalar(&b, "User goal", m.UserGoal)

	if len(m.Entities) > 0 {
		b.WriteString("Entities:\n")
		for _, e := range m.Entities {
			line := "- " + stripMarkers(e.Name)
			if e.Type != "" {
				line += " (" + stripMarkers(e.Type) + ")"
			}
			if e.Summary != "" {
				line += ": " + stripMarkers(e.Summary)
			}
			b.WriteString(line + "\n")
		}
	}
	writeItems(&b, "Decisions so far", m.Decisions)
	writeItems(&b, "Open questions", m.OpenQuestions)

	constraints := filterMeta(m.Constraints)
	if len(constraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range constraints {
			b.WriteString("- " + stripMarkers(c) + "\n")
		}
	}

	if task := m.CurrentTask; task != "" && !isMetaInstruction(task) {
		writeScalar(&b, "Current task", task)
	}

	b.WriteString(notesFooter)
	b.WriteString("\n\n")
	b.WriteString("These notes are background only. Respond to the user's current task in your own voice; do not recite or critique the notes themselves.\n\n")
	b.WriteString(memoryNoteInstruction())

	return b.String()
}

// FormatSummary builds a context block directly from a raw summary,
// bypassing durable memory. Used when persistence fails so a handoff
// can still proceed.
func FormatSummary(s Summary) string {
	now := time.Now()
	m := New(now)
	m.Merge(s, now)
	// ImportantFacts have no durable home; in the stateless fallback they
	// ride along as decisions so the receiving agent still sees them.
	m.Decisions = appendUnlessFuzzy(m.Decisions, s.ImportantFacts, now)
	m.Evict()
	return Format(m)
}

func memoryNoteInstruction() string {
	var b strings.Builder
	b.WriteString("When you have finished your reply, append a short memory note between these exact markers:\n")
	b.WriteString(MarkerStart)
	b.WriteString("\n")
	b.WriteString("Topic: <topic>\n")
	b.WriteString("Goal: <what the user wants>\n")
	b.WriteString("Task: <what should happen next>\n")
	b.WriteString("Facts: <fact>; <fact>\n")
	b.WriteString("Decisions: <decision>; <decision>\n")
	b.WriteString("Entities: <name>/<type>/<summary>; ...\n")
	b.WriteString("Open questions: <question>; <question>\n")
	b.WriteString("Constraints: <constraint>; <constraint>\n")
	b.WriteString(MarkerEnd)
	b.WriteString("\n")
	return b.String()
}

func writeScalar(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(stripMarkers(value))
	b.WriteString("\n")
}

func writeItems(b *strings.Builder, label string, items []Item) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString(":\n")
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(stripMarkers(it.Text))
		b.WriteString("\n")
	}
}

func filterMeta(values []string) []string {
	var out []string
	for _, v := range values {
		if v == "" || isMetaInstruction(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
