package memory

import (
	"encoding/json"
	"strings"
)

// Decode splits a raw agent reply into the conversational answer and an
// optional memory update. Missing or malformed markers degrade
// gracefully: the whole reply (trimmed) is returned and the update is
// nil, so the conversation continues even when an agent ignores the
// memory-note instruction. A block whose fields are all empty also
// yields a nil update.
func Decode(raw string) (reply string, update *Summary) {
	start := strings.Index(raw, MarkerStart)
	if start < 0 {
		return strings.TrimSpace(raw), nil
	}
	rest := raw[start+len(MarkerStart):]
	end := strings.Index(rest, MarkerEnd)
	if end < 0 {
		return strings.TrimSpace(raw), nil
	}

	reply = strings.TrimSpace(raw[:start])
	block := strings.TrimSpace(rest[:end])

	var s Summary
	if strings.HasPrefix(block, "{") {
		s = decodeJSONBlock(block)
	} else {
		s = decodeLabelBlock(block)
	}

	if s.IsEmpty() {
		return reply, nil
	}
	return reply, &s
}

// decodeJSONBlock parses a JSON-looking memory block into a Summary.
// Keys are matched case-insensitively with the same synonyms as the
// label form; unparseable JSON yields an empty Summary.
func decodeJSONBlock(block string) Summary {
	var m map[string]any
	if err := json.Unmarshal([]byte(block), &m); err != nil {
		return Summary{}
	}

	var s Summary
	for k, v := range m {
		assignField(&s, canonicalLabel(k), v)
	}
	return s
}

// decodeLabelBlock parses "Label: value" lines. Labels are
// case-insensitive with synonyms per field; list values are separated
// by semicolons; entities are encoded as name/type/summary.
func decodeLabelBlock(block string) Summary {
	var s Summary
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		assignField(&s, canonicalLabel(label), strings.TrimSpace(value))
	}
	return s
}

// canonicalLabel maps a raw label (or JSON key) to a canonical field
// name, accepting the synonyms agents tend to produce.
func canonicalLabel(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.ReplaceAll(key, "_", " ")
	switch key {
	case "topic", "subject":
		return "topic"
	case "goal", "user goal", "objective":
		return "user_goal"
	case "task", "current task", "next task", "next step":
		return "current_task"
	case "facts", "important facts", "key facts":
		return "important_facts"
	case "decisions", "decisions made", "decision":
		return "decisions_made"
	case "entities", "entity":
		return "entities"
	case "open questions", "questions", "question":
		return "open_questions"
	case "constraints", "constraint", "requirements":
		return "constraints"
	}
	return ""
}

// assignField writes a decoded value into the summary field named by
// the canonical label. Values may be strings (semicolon lists) or, from
// the JSON form, arrays of strings or entity objects.
func assignField(s *Summary, field string, value any) {
	switch field {
	case "topic":
		s.Topic = scalarValue(value)
	case "user_goal":
		s.UserGoal = scalarValue(value)
	case "current_task":
		s.CurrentTask = scalarValue(value)
	case "important_facts":
		s.ImportantFacts = listValue(value)
	case "decisions_made":
		s.DecisionsMade = listValue(value)
	case "open_questions":
		s.OpenQuestions = listValue(value)
	case "constraints":
		s.Constraints = listValue(value)
	case "entities":
		s.Entities = entityValue(value)
	}
}

func scalarValue(v any) string {
	str, _ := v.(string)
	return strings.TrimSpace(str)
}

func listValue(v any) []string {
	switch t := v.(type) {
	case string:
		return splitList(t)
	case []any:
		var out []string
		for _, e := range t {
			if str := scalarValue(e); str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func entityValue(v any) []SummaryEntity {
	switch t := v.(type) {
	case string:
		var out []SummaryEntity
		for _, part := range splitList(t) {
			if e, ok := parseEntitySpec(part); ok {
				out = append(out, e)
			}
		}
		return out
	case []any:
		var out []SummaryEntity
		for _, raw := range t {
			switch e := raw.(type) {
			case string:
				if ent, ok := parseEntitySpec(e); ok {
					out = append(out, ent)
				}
			case map[string]any:
				ent := SummaryEntity{
					Name:    scalarValue(e["name"]),
					Type:    scalarValue(e["type"]),
					Summary: scalarValue(e["summary"]),
				}
				if ent.Name != "" {
					out = append(out, ent)
				}
			}
		}
		return out
	}
	return nil
}

// parseEntitySpec parses the "name/type/summary" wire form. Type and
// summary are optional; a summary may itself contain slashes.
func parseEntitySpec(spec string) (SummaryEntity, bool) {
	parts := strings.SplitN(spec, "/", 3)
	e := SummaryEntity{Name: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		e.Type = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		e.Summary = strings.TrimSpace(parts[2])
	}
	return e, e.Name != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
