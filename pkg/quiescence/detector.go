// Package quiescence decides when an external agent has finished a
// reply. Agents give no completion signal, so the detector samples the
// adapter's view of the visible output and declares a turn complete
// once the text has grown past the pre-submission baseline and then
// stopped changing. The algorithm is identical for every adapter; only
// the observation is adapter-specific.
package quiescence

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrTimeout indicates the output never settled within the window.
var ErrTimeout = errors.New("quiescence: output never settled")

// Observer supplies snapshots of the agent's visible reply. Snapshots
// must be scoped to exclude unrelated UI chrome; they need not grow
// monotonically.
type Observer interface {
	Observe(ctx context.Context) (string, error)
}

// Settings parameterize the detection algorithm. The zero value gets
// the standard defaults.
type Settings struct {
	// Interval between samples.
	Interval time.Duration
	// MinGrowth is the number of characters beyond the baseline length
	// required before stability is considered. Suppresses false
	// triggers from trivial UI changes.
	MinGrowth int
	// StableSamples is how many consecutive byte-identical samples end
	// the wait. Tolerates brief pauses mid-stream.
	StableSamples int
	// Timeout bounds the whole wait.
	Timeout time.Duration
	// MinLineLength drops shorter lines from the extracted content,
	// filtering out stray interface labels.
	MinLineLength int
}

func (s *Settings) defaults() {
	if s.Interval <= 0 {
		s.Interval = 500 * time.Millisecond
	}
	if s.MinGrowth <= 0 {
		s.MinGrowth = 50
	}
	if s.StableSamples <= 0 {
		s.StableSamples = 4
	}
	if s.Timeout <= 0 {
		s.Timeout = 90 * time.Second
	}
	if s.MinLineLength <= 0 {
		s.MinLineLength = 10
	}
}

// Detector waits for an agent's output to settle.
type Detector struct {
	obs      Observer
	settings Settings
}

// NewDetector creates a detector over the given observer. Zero-valued
// settings fields get defaults.
func NewDetector(obs Observer, settings Settings) *Detector {
	settings.defaults()
	return &Detector{obs: obs, settings: settings}
}

// Wait blocks until the observed output has grown past the baseline and
// then stabilized, returning only the newly produced text. It returns
// ErrTimeout if the output never settles within the window, and the
// context error if ctx is cancelled first. No busy waiting: sampling is
// ticker-driven.
func (d *Detector) Wait(ctx context.Context, baseline string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.settings.Timeout)
	defer cancel()

	ticker := time.NewTicker(d.settings.Interval)
	defer ticker.Stop()

	threshold := len(baseline) + d.settings.MinGrowth
	grown := false
	var last string
	streak := 0

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		sample, err := d.obs.Observe(ctx)
		if err != nil {
			return "", err
		}

		if !grown {
			// Phase 1: wait for real growth past the baseline.
			if len(sample) <= threshold {
				continue
			}
			grown = true
			last = sample
			streak = 0
			continue
		}

		// Phase 2: wait for consecutive identical samples.
		if sample == last {
			streak++
		} else {
			last = sample
			streak = 1
		}
		if streak >= d.settings.StableSamples {
			return d.extract(baseline, last), nil
		}
	}
}

// extract isolates the newly produced text: slice the final sample at
// the baseline's length, then drop lines shorter than MinLineLength.
func (d *Detector) extract(baseline, final string) string {
	if len(final) <= len(baseline) {
		return ""
	}
	fresh := final[len(baseline):]

	var kept []string
	for _, line := range strings.Split(fresh, "\n") {
		if len(strings.TrimSpace(line)) >= d.settings.MinLineLength {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
