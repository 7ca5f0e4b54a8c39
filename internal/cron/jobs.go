package cron

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the subset of orchestrator behavior the sweep job needs.
// Defined here to avoid a dependency on the orchestrator package.
type Pruner interface {
	PruneStale(maxAge time.Duration) int
}

// HandoffSweepJob removes pending handoffs and reviews whose target
// session never showed up. A handoff older than MaxAge means the
// adapter host failed to open the session or the session died before
// announcing itself.
type HandoffSweepJob struct {
	Orchestrator Pruner
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*HandoffSweepJob)(nil)

// Name implements Job.
func (j *HandoffSweepJob) Name() string { return "handoff_sweep" }

// Schedule implements Job.
func (j *HandoffSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run sweeps pending state older than MaxAge.
func (j *HandoffSweepJob) Run(_ context.Context) error {
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	pruned := j.Orchestrator.PruneStale(maxAge)
	if pruned > 0 && j.Logger != nil {
		j.Logger.Info("cron: swept stale handoffs", "count", pruned, "max_age", maxAge)
	}
	return nil
}
