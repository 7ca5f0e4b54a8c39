package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/crosstalk/internal/config"
	"github.com/flemzord/crosstalk/internal/core"
	"github.com/flemzord/crosstalk/internal/cron"
	"github.com/flemzord/crosstalk/internal/memory"
	"github.com/flemzord/crosstalk/internal/metrics"
	"github.com/flemzord/crosstalk/internal/orchestrator"
	"github.com/flemzord/crosstalk/internal/registry"
)

// hub is what the gateway registers under gateway.hub.
type hub interface {
	orchestrator.SessionOpener
	orchestrator.CritiqueSender
}

// schedulerModule wraps a *cron.Scheduler to satisfy core.Module,
// core.Starter, and core.Stopper, so the sweep job participates in the
// App lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *schedulerModule) Start() error {
	return m.scheduler.Start()
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// wireOrchestrator creates the Orchestrator around the gateway hub and
// the configured store, registers it for the gateway to resolve, and
// appends the stale-handoff sweep to the app lifecycle. Must be called
// after LoadModules and before Start.
func wireOrchestrator(
	app *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	logger *slog.Logger,
	collector *metrics.Collector,
	reg *registry.Registry,
) error {
	svc, ok := appCtx.Service("gateway.hub")
	if !ok {
		return errors.New("app: gateway module is required (add gateway.ws to modules)")
	}
	h, ok := svc.(hub)
	if !ok {
		return errors.New("app: gateway.hub service has unexpected type")
	}

	// Prefer the persistent store from the sqlite module; fall back to
	// in-process memory when none is configured.
	var store memory.Store
	if svc, ok := appCtx.Service("memory.store"); ok {
		store, _ = svc.(memory.Store)
	}
	if store == nil {
		store = memory.NewMemStore()
		logger.Warn("no persistent memory module loaded, conversation memory is in-process only")
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Registry:  reg,
		Store:     store,
		Opener:    h,
		Critiques: h,
		Logger:    logger,
		Metrics:   collector,
	})
	if err != nil {
		return err
	}
	appCtx.RegisterService("orchestrator.core", orch)

	// Stale handoffs pile up when a host never opens the session; sweep
	// them on a schedule.
	scheduler := cron.NewScheduler(logger)
	sweep := &cron.HandoffSweepJob{
		Orchestrator: orch,
		MaxAge:       10 * time.Minute,
		Logger:       logger,
	}
	if cfg.Sweep != nil {
		sweep.ScheduleExpr = cfg.Sweep.Schedule
		if cfg.Sweep.MaxAge != "" {
			maxAge, err := time.ParseDuration(cfg.Sweep.MaxAge)
			if err == nil {
				sweep.MaxAge = maxAge
			}
		}
	}
	if err := scheduler.RegisterJob(sweep); err != nil {
		return err
	}
	app.AppendModule("cron", &schedulerModule{scheduler: scheduler})

	logger.Info("orchestrator wired", "agents", reg.Len())
	return nil
}
