// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for crosstalk.
package config

import (
	"gopkg.in/yaml.v3"

	"github.com/flemzord/crosstalk/internal/registry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Agents is the static registry of conversational agents the
	// orchestrator can hand a conversation to, in declaration order.
	Agents []registry.Agent `yaml:"agents"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "gateway.ws").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Sweep tunes the stale-handoff sweeper. Optional.
	Sweep *SweepConfig `yaml:"sweep,omitempty"`
}

// SweepConfig controls the background job pruning abandoned handoffs.
type SweepConfig struct {
	// Schedule is a 5-field cron expression. Default "*/5 * * * *".
	Schedule string `yaml:"schedule,omitempty"`

	// MaxAge is how long a pending handoff may sit unconsumed before it
	// is dropped (Go duration string). Default "10m".
	MaxAge string `yaml:"max_age,omitempty"`
}
