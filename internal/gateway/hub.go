package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/flemzord/crosstalk/internal/metrics"
	"github.com/flemzord/crosstalk/internal/registry"
	"github.com/flemzord/crosstalk/pkg/protocol"
)

// wsConn wraps a websocket connection with a write lock so concurrent
// pushes (critique, open_session) never interleave frames.
type wsConn struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func (c *wsConn) send(ctx context.Context, env protocol.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Hub tracks live adapter connections: one entry per session and one
// host entry per agent key a host connection declared. It is the
// delivery side of the orchestration loop and implements
// orchestrator.SessionOpener and orchestrator.CritiqueSender.
type Hub struct {
	logger      *slog.Logger
	metrics     *metrics.Collector
	openTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*wsConn
	hosts    map[string]*wsConn
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger, openTimeout time.Duration) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if openTimeout <= 0 {
		openTimeout = 10 * time.Second
	}
	return &Hub{
		logger:      logger,
		openTimeout: openTimeout,
		sessions:    make(map[string]*wsConn),
		hosts:       make(map[string]*wsConn),
	}
}

func (h *Hub) setMetrics(m *metrics.Collector) {
	h.metrics = m
}

func (h *Hub) addSession(sessionID string, c *wsConn) {
	h.mu.Lock()
	h.sessions[sessionID] = c
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectedSessions.Inc()
	}
}

func (h *Hub) removeSession(sessionID string, c *wsConn) {
	h.mu.Lock()
	// A reconnect may have replaced the entry already.
	if h.sessions[sessionID] == c {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectedSessions.Dec()
	}
}

// addHost registers a host connection for every agent key it declared.
// A later host for the same key wins; the stale entry is cleaned up
// when its connection drops.
func (h *Hub) addHost(agentKeys []string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range agentKeys {
		h.hosts[key] = c
	}
}

func (h *Hub) removeHost(agentKeys []string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range agentKeys {
		if h.hosts[key] == c {
			delete(h.hosts, key)
		}
	}
}

// SessionCount returns the number of connected session adapters.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// HostKeys returns the agent keys currently served by host connections.
func (h *Hub) HostKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.hosts))
	for key := range h.hosts {
		keys = append(keys, key)
	}
	return keys
}

// OpenSession implements orchestrator.SessionOpener. It mints a session
// ID and instructs the host connection serving the agent to open a new
// session surface under that ID. The adapter connects back with the ID
// in its hello; until then the session entry simply does not exist yet.
func (h *Hub) OpenSession(ctx context.Context, agent registry.Agent) (string, error) {
	h.mu.Lock()
	host := h.hosts[agent.Key]
	h.mu.Unlock()
	if host == nil {
		return "", fmt.Errorf("gateway: no adapter host connected for agent %q", agent.Key)
	}

	sessionID := uuid.NewString()
	env, err := protocol.NewEnvelope(protocol.MsgOpenSession, uuid.NewString(), protocol.OpenSession{
		SessionID: sessionID,
		AgentKey:  agent.Key,
		EntryURL:  agent.EntryURL,
	})
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.openTimeout)
	defer cancel()
	if err := host.send(sendCtx, env); err != nil {
		return "", fmt.Errorf("gateway: open_session to host for %q: %w", agent.Key, err)
	}

	h.logger.Info("session open requested", "agent", agent.Key, "session_id", sessionID)
	return sessionID, nil
}

// SendCritique implements orchestrator.CritiqueSender. It pushes the
// attributed reply to the source session's connection.
func (h *Hub) SendCritique(ctx context.Context, sessionID, content string) error {
	h.mu.Lock()
	sess := h.sessions[sessionID]
	h.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("gateway: session %q not connected", sessionID)
	}

	env, err := protocol.NewEnvelope(protocol.MsgCritique, uuid.NewString(), protocol.Critique{Content: content})
	if err != nil {
		return err
	}
	return sess.send(ctx, env)
}

// closeAll disconnects every tracked connection, used at shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make(map[*wsConn]struct{}, len(h.sessions)+len(h.hosts))
	for _, c := range h.sessions {
		conns[c] = struct{}{}
	}
	for _, c := range h.hosts {
		conns[c] = struct{}{}
	}
	h.sessions = make(map[string]*wsConn)
	h.hosts = make(map[string]*wsConn)
	h.mu.Unlock()

	for c := range conns {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
