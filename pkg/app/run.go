// Package app provides the shared entry point for the crosstalk binary.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/crosstalk/internal/config"
	"github.com/flemzord/crosstalk/internal/core"
	"github.com/flemzord/crosstalk/internal/metrics"
	"github.com/flemzord/crosstalk/internal/registry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules, and blocks until a
// shutdown signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register shared services for cross-module discovery.
	collector := metrics.NewCollector()
	appCtx.RegisterService("metrics.collector", collector)

	reg, err := registry.New(cfg.Agents)
	if err != nil {
		return err
	}
	appCtx.RegisterService("agents.registry", reg)
	logger.Info("agent roster loaded", "agents", reg.Len())

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the orchestrator between LoadModules and Start: the gateway
	// hub and the persistent store exist after Provision, and the
	// gateway resolves orchestrator.core at Start.
	if err := wireOrchestrator(application, appCtx, cfg, logger, collector, reg); err != nil {
		return err
	}

	return application.Run()
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/crosstalk/crosstalk.yaml →
// ~/.config/crosstalk/crosstalk.yaml → ./crosstalk.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "crosstalk", "crosstalk.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "crosstalk", "crosstalk.yaml"))
	}

	candidates = append(candidates, "crosstalk.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/crosstalk if set, otherwise ~/.local/share/crosstalk
// per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "crosstalk")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "crosstalk")
}
