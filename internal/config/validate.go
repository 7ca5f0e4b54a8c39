package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/flemzord/crosstalk/internal/core"
)

// Validate checks the structural validity of a Config: the version
// field, the agent registry, referenced module IDs, and sweep settings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Agents) == 0 {
		errs = append(errs, errors.New("config: at least one agent must be configured"))
	}
	errs = append(errs, validateAgents(cfg)...)

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if cfg.Sweep != nil {
		if cfg.Sweep.MaxAge != "" {
			if _, err := time.ParseDuration(cfg.Sweep.MaxAge); err != nil {
				errs = append(errs, fmt.Errorf("config: sweep.max_age: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// validateAgents checks agent-specific constraints: unique non-empty
// keys and well-formed entry URLs.
func validateAgents(cfg *Config) []error {
	var errs []error
	seen := make(map[string]struct{}, len(cfg.Agents))

	for i, a := range cfg.Agents {
		if a.Key == "" {
			errs = append(errs, fmt.Errorf("config: agents[%d]: key is required", i))
			continue
		}
		if _, dup := seen[a.Key]; dup {
			errs = append(errs, fmt.Errorf("config: duplicate agent key %q", a.Key))
		}
		seen[a.Key] = struct{}{}

		if a.EntryURL == "" {
			errs = append(errs, fmt.Errorf("config: agent %q: entry_url is required", a.Key))
			continue
		}
		u, err := url.Parse(a.EntryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: agent %q: invalid entry_url %q", a.Key, a.EntryURL))
		}
	}

	return errs
}
