package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/flemzord/crosstalk/pkg/protocol"
)

const helloReadTimeout = 10 * time.Second

// handleWebSocket is the HTTP handler for adapter connections. It runs
// the full connection lifecycle: hello handshake -> read loop.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	c := &wsConn{conn: conn}

	hello, err := g.handleHello(r.Context(), c)
	if err != nil {
		g.logger.Warn("handshake failed", "error", err)
		return
	}

	switch hello.Role {
	case protocol.RoleHost:
		g.hub.addHost(hello.AgentKeys, c)
		g.logger.Info("host connected", "agents", hello.AgentKeys)
		g.readLoop(r.Context(), c, hello.SessionID)
		g.hub.removeHost(hello.AgentKeys, c)
		g.logger.Info("host disconnected", "agents", hello.AgentKeys)

	case protocol.RoleSession:
		g.hub.addSession(hello.SessionID, c)
		g.logger.Info("session connected", "session_id", hello.SessionID)
		g.readLoop(r.Context(), c, hello.SessionID)
		g.hub.removeSession(hello.SessionID, c)
		g.logger.Info("session disconnected", "session_id", hello.SessionID)
	}
}

// handleHello reads the hello message with a timeout, validates the
// pairing token when one is configured, and acknowledges. Sessions that
// arrive without an ID (opened by hand, not by the orchestrator) are
// assigned one in the ack.
func (g *Gateway) handleHello(ctx context.Context, c *wsConn) (protocol.Hello, error) {
	helloCtx, cancel := context.WithTimeout(ctx, helloReadTimeout)
	defer cancel()

	_, data, err := c.conn.Read(helloCtx)
	if err != nil {
		return protocol.Hello{}, fmt.Errorf("read hello: %w", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.sendError(ctx, c, "", "invalid message format")
		return protocol.Hello{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type != protocol.MsgHello {
		g.sendError(ctx, c, env.ID, "expected hello")
		return protocol.Hello{}, fmt.Errorf("unexpected message type: %s", env.Type)
	}

	var hello protocol.Hello
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		g.sendError(ctx, c, env.ID, "invalid hello payload")
		return protocol.Hello{}, fmt.Errorf("unmarshal hello: %w", err)
	}

	if g.config.PairingToken != "" && hello.Token != g.config.PairingToken {
		g.sendHelloAck(ctx, c, env.ID, protocol.HelloAck{Accepted: false, Reason: "invalid pairing token"})
		return protocol.Hello{}, errors.New("invalid pairing token")
	}

	switch hello.Role {
	case protocol.RoleHost:
		if len(hello.AgentKeys) == 0 {
			g.sendHelloAck(ctx, c, env.ID, protocol.HelloAck{Accepted: false, Reason: "host declared no agents"})
			return protocol.Hello{}, errors.New("host declared no agents")
		}
	case protocol.RoleSession:
		if hello.SessionID == "" {
			hello.SessionID = uuid.NewString()
		}
	default:
		g.sendHelloAck(ctx, c, env.ID, protocol.HelloAck{Accepted: false, Reason: "unknown role"})
		return protocol.Hello{}, fmt.Errorf("unknown role %q", hello.Role)
	}

	g.sendHelloAck(ctx, c, env.ID, protocol.HelloAck{Accepted: true, SessionID: hello.SessionID})
	return hello, nil
}

// readLoop dispatches messages until the connection drops. Bad payloads
// are logged and skipped so one malformed adapter message never kills
// the connection.
func (g *Gateway) readLoop(ctx context.Context, c *wsConn, sessionID string) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.logger.Warn("invalid message", "session_id", sessionID, "error", err)
			continue
		}

		switch env.Type {
		case protocol.MsgCapture:
			var capMsg protocol.Capture
			if err := json.Unmarshal(env.Payload, &capMsg); err != nil {
				g.sendError(ctx, c, env.ID, "invalid capture payload")
				continue
			}
			g.handleCapture(ctx, c, env.ID, sessionID, capMsg)

		case protocol.MsgReady:
			res := g.orch.Ready(sessionID)
			g.reply(ctx, c, protocol.MsgReadyResult, env.ID, protocol.ReadyResult{
				Inject:         res.Inject,
				ContextBlock:   res.ContextBlock,
				ConversationID: res.ConversationID,
			})

		case protocol.MsgResponse:
			var resp protocol.Response
			if err := json.Unmarshal(env.Payload, &resp); err != nil {
				g.sendError(ctx, c, env.ID, "invalid response payload")
				continue
			}
			g.orch.Response(ctx, sessionID, resp.Content)

		case protocol.MsgListAgents:
			var req protocol.ListAgents
			if len(env.Payload) > 0 {
				if err := json.Unmarshal(env.Payload, &req); err != nil {
					g.sendError(ctx, c, env.ID, "invalid list_agents payload")
					continue
				}
			}
			var roster protocol.Agents
			for _, a := range g.orch.ListAgents(req.ExcludeKey) {
				roster.Agents = append(roster.Agents, protocol.AgentInfo{
					Key:         a.Key,
					DisplayName: a.DisplayName,
				})
			}
			g.reply(ctx, c, protocol.MsgAgents, env.ID, roster)

		default:
			g.logger.Warn("unexpected message type in read loop",
				"session_id", sessionID,
				"type", env.Type,
			)
		}
	}
}

// handleCapture hands the summary to the orchestrator. Capture is
// fire-and-forget on success; failures are reported so the source
// adapter can surface them.
func (g *Gateway) handleCapture(ctx context.Context, c *wsConn, envID, sessionID string, msg protocol.Capture) {
	req := orchestratorCapture(msg, sessionID)
	if err := g.orch.Capture(ctx, req); err != nil {
		g.logger.Warn("capture failed",
			"session_id", sessionID,
			"target", msg.TargetAgent,
			"error", err,
		)
		g.sendError(ctx, c, envID, err.Error())
	}
}

func (g *Gateway) reply(ctx context.Context, c *wsConn, t protocol.MessageType, id string, payload any) {
	env, err := protocol.NewEnvelope(t, id, payload)
	if err != nil {
		g.logger.Error("marshal reply failed", "type", t, "error", err)
		return
	}
	if err := c.send(ctx, env); err != nil {
		g.logger.Warn("send reply failed", "type", t, "error", err)
	}
}

func (g *Gateway) sendError(ctx context.Context, c *wsConn, id, message string) {
	g.reply(ctx, c, protocol.MsgError, id, protocol.Error{Message: message})
}

func (g *Gateway) sendHelloAck(ctx context.Context, c *wsConn, id string, ack protocol.HelloAck) {
	g.reply(ctx, c, protocol.MsgHelloAck, id, ack)
}
