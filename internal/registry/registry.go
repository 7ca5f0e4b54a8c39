// Package registry holds the static set of conversational agents the
// orchestrator can hand a conversation to. Adding an agent requires
// only a config entry and a conforming adapter.
package registry

import (
	"fmt"
	"sort"
)

// Agent describes one supported external agent.
type Agent struct {
	// Key is the stable identifier adapters use in capture requests.
	Key string `yaml:"key" json:"key"`

	// DisplayName is the human-readable name used in attribution lines
	// and agent pickers.
	DisplayName string `yaml:"display_name" json:"display_name"`

	// EntryURL is where the adapter host opens a fresh session for this
	// agent.
	EntryURL string `yaml:"entry_url" json:"entry_url"`

	// ReadySignal and ResponseSignal name the adapter-side cues for a
	// session accepting input and a finished reply. Opaque to the core;
	// passed through to adapters.
	ReadySignal    string `yaml:"ready_signal,omitempty" json:"ready_signal,omitempty"`
	ResponseSignal string `yaml:"response_signal,omitempty" json:"response_signal,omitempty"`
}

// Registry is an immutable lookup table of agents, preserving
// declaration order for listing.
type Registry struct {
	agents []Agent
	byKey  map[string]int
}

// New builds a Registry from the given agents. Keys must be non-empty
// and unique.
func New(agents []Agent) (*Registry, error) {
	r := &Registry{byKey: make(map[string]int, len(agents))}
	for _, a := range agents {
		if a.Key == "" {
			return nil, fmt.Errorf("registry: agent with empty key (display name %q)", a.DisplayName)
		}
		if _, exists := r.byKey[a.Key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, a.Key)
		}
		if a.DisplayName == "" {
			a.DisplayName = a.Key
		}
		r.byKey[a.Key] = len(r.agents)
		r.agents = append(r.agents, a)
	}
	return r, nil
}

// Get returns the agent for the given key, or ErrUnknownAgent.
func (r *Registry) Get(key string) (Agent, error) {
	idx, ok := r.byKey[key]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %q", ErrUnknownAgent, key)
	}
	return r.agents[idx], nil
}

// List returns all agents except the one with excludeKey, in
// declaration order. An empty excludeKey returns everything.
func (r *Registry) List(excludeKey string) []Agent {
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a.Key == excludeKey {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Keys returns all agent keys sorted alphabetically.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.agents))
	for _, a := range r.agents {
		keys = append(keys, a.Key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.agents)
}
