package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/crosstalk/internal/core"
	"github.com/flemzord/crosstalk/internal/metrics"
	"github.com/flemzord/crosstalk/internal/orchestrator"
	"github.com/flemzord/crosstalk/internal/registry"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Orchestrator is the subset of orchestration behavior the gateway
// drives on behalf of connected adapters.
type Orchestrator interface {
	Capture(ctx context.Context, req orchestrator.CaptureRequest) error
	Ready(sessionID string) orchestrator.ReadyResult
	Response(ctx context.Context, sessionID, rawContent string)
	ListAgents(excludeKey string) []registry.Agent
	Pending() (handoffs, reviews int)
}

// Gateway is the WebSocket gateway module. It accepts adapter
// connections on /ws and exposes health, metrics, and roster endpoints.
// It is a leaf module — nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	hub       *Hub
	server    *http.Server
	metrics   *metrics.Collector
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	orch Orchestrator
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.ws",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The hub is registered as a
// service here so the application wiring can hand it to the
// orchestrator as session opener and critique sender before Start.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.hub = NewHub(g.logger, g.config.OpenTimeout)

	ctx.RegisterService("gateway.hub", g.hub)

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves the orchestrator and the
// metrics collector from the service registry (lazy binding) and starts
// the HTTP server.
func (g *Gateway) Start() error {
	svc, ok := g.appCtx.Service("orchestrator.core")
	if !ok {
		return errors.New("gateway: orchestrator.core service not registered")
	}
	orch, ok := svc.(Orchestrator)
	if !ok {
		return errors.New("gateway: orchestrator.core service has unexpected type")
	}
	g.orch = orch

	// Metrics are optional — graceful degradation if missing.
	if svc, ok := g.appCtx.Service("metrics.collector"); ok {
		if collector, ok := svc.(*metrics.Collector); ok {
			g.metrics = collector
			g.hub.setMetrics(collector)
		}
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured
// timeout; connected adapters get a going-away close.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	g.hub.closeAll()
	return g.server.Shutdown(shutdownCtx)
}
