package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Get("/api/agents", g.handleListAgents())

	// Adapter WebSocket — pairing token auth inside the handshake, not
	// at the HTTP layer, so rejections carry a protocol-level reason.
	r.Get("/ws", g.handleWebSocket)

	if g.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
