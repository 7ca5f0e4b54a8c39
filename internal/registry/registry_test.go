package registry_test

import (
	"errors"
	"testing"

	"github.com/flemzord/crosstalk/internal/registry"
)

func testAgents() []registry.Agent {
	return []registry.Agent{
		{Key: "chatgpt", DisplayName: "ChatGPT", EntryURL: "https://chatgpt.com"},
		{Key: "claude", DisplayName: "Claude", EntryURL: "https://claude.ai"},
		{Key: "gemini", DisplayName: "Gemini", EntryURL: "https://gemini.google.com"},
	}
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	r, err := registry.New(testAgents())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a, err := r.Get("claude")
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if a.DisplayName != "Claude" {
		t.Errorf("DisplayName = %q, want %q", a.DisplayName, "Claude")
	}

	if _, err := r.Get("copilot"); !errors.Is(err, registry.ErrUnknownAgent) {
		t.Fatalf("Get(unknown) = %v, want ErrUnknownAgent", err)
	}
}

func TestRegistry_ListExcludesCaller(t *testing.T) {
	t.Parallel()

	r, err := registry.New(testAgents())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	list := r.List("claude")
	if len(list) != 2 {
		t.Fatalf("List returned %d agents, want 2", len(list))
	}
	// Declaration order is preserved.
	if list[0].Key != "chatgpt" || list[1].Key != "gemini" {
		t.Errorf("List order = [%s %s], want [chatgpt gemini]", list[0].Key, list[1].Key)
	}

	if got := len(r.List("")); got != 3 {
		t.Errorf("List(\"\") returned %d agents, want 3", got)
	}
}

func TestRegistry_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := registry.New([]registry.Agent{{Key: ""}}); err == nil {
		t.Error("New accepted an agent with an empty key")
	}

	dup := []registry.Agent{{Key: "claude"}, {Key: "claude"}}
	if _, err := registry.New(dup); !errors.Is(err, registry.ErrDuplicateKey) {
		t.Errorf("New(duplicate) = %v, want ErrDuplicateKey", err)
	}
}

func TestRegistry_DisplayNameDefaultsToKey(t *testing.T) {
	t.Parallel()

	r, err := registry.New([]registry.Agent{{Key: "mistral"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := r.Get("mistral")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.DisplayName != "mistral" {
		t.Errorf("DisplayName = %q, want key fallback", a.DisplayName)
	}
}
