package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/crosstalk/pkg/protocol"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status          string   `json:"status"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	Sessions        int      `json:"sessions"`
	Hosts           []string `json:"hosts"`
	PendingHandoffs int      `json:"pending_handoffs"`
	PendingReviews  int      `json:"pending_reviews"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(g.startedAt) / time.Second),
			Sessions:      g.hub.SessionCount(),
			Hosts:         g.hub.HostKeys(),
		}
		if g.orch != nil {
			resp.PendingHandoffs, resp.PendingReviews = g.orch.Pending()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleListAgents returns an http.HandlerFunc for GET /api/agents.
// The exclude query parameter drops one agent from the roster, matching
// the list_agents WebSocket request.
func (g *Gateway) handleListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var roster protocol.Agents
		if g.orch != nil {
			for _, a := range g.orch.ListAgents(r.URL.Query().Get("exclude")) {
				roster.Agents = append(roster.Agents, protocol.AgentInfo{
					Key:         a.Key,
					DisplayName: a.DisplayName,
				})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(roster)
	}
}
