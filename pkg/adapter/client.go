// Package adapter is the client SDK for connecting an agent surface to
// a crosstalk gateway. An adapter speaks the protocol package's
// envelope format over WebSocket: session adapters capture summaries
// and relay responses, host adapters open new sessions on request.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/flemzord/crosstalk/pkg/quiescence"
	"github.com/flemzord/crosstalk/pkg/protocol"
)

const requestTimeout = 10 * time.Second

// ErrClosed is returned for requests on a closed client.
var ErrClosed = errors.New("adapter: connection closed")

// Options configures a client connection.
type Options struct {
	// URL is the gateway WebSocket endpoint, e.g. ws://127.0.0.1:8787/ws.
	URL string
	// Token is the pairing token, when the gateway requires one.
	Token string
	// Role selects session or host behavior.
	Role protocol.Role
	// SessionID announces an orchestrator-assigned session ID. Leave
	// empty for sessions the user opened by hand; the gateway mints one.
	SessionID string
	// AgentKeys lists the agents a host connection serves.
	AgentKeys []string

	Logger *slog.Logger

	// OnCritique is invoked when the gateway pushes a relayed reply to
	// this session. Called from the read goroutine.
	OnCritique func(content string)
	// OnOpenSession is invoked on host connections when the gateway
	// asks for a new session surface. Called from the read goroutine.
	OnOpenSession func(open protocol.OpenSession)
	// OnError is invoked for error messages that do not correlate with
	// an in-flight request, e.g. a failed fire-and-forget capture.
	OnError func(message string)
}

// Client is a live adapter connection.
type Client struct {
	conn      *websocket.Conn
	opts      Options
	logger    *slog.Logger
	sessionID string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.Envelope
	closed  bool

	done chan struct{}
}

// Dial connects to the gateway and performs the hello handshake. The
// returned client's read loop runs until Close or a connection error.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Role == "" {
		opts.Role = protocol.RoleSession
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.Dial(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("adapter: dial %s: %w", opts.URL, err)
	}

	c := &Client{
		conn:    conn,
		opts:    opts,
		logger:  logger,
		pending: make(map[string]chan protocol.Envelope),
		done:    make(chan struct{}),
	}

	ack, err := c.hello(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, err
	}
	if !ack.Accepted {
		_ = conn.Close(websocket.StatusNormalClosure, "rejected")
		return nil, fmt.Errorf("adapter: gateway rejected connection: %s", ack.Reason)
	}
	c.sessionID = ack.SessionID

	go c.readLoop()

	return c, nil
}

// SessionID returns the session ID the gateway acknowledged. Empty for
// host connections.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, "client closing")
}

func (c *Client) hello(ctx context.Context) (protocol.HelloAck, error) {
	env, err := protocol.NewEnvelope(protocol.MsgHello, uuid.NewString(), protocol.Hello{
		Token:     c.opts.Token,
		Role:      c.opts.Role,
		SessionID: c.opts.SessionID,
		AgentKeys: c.opts.AgentKeys,
	})
	if err != nil {
		return protocol.HelloAck{}, err
	}
	if err := c.write(ctx, env); err != nil {
		return protocol.HelloAck{}, fmt.Errorf("adapter: send hello: %w", err)
	}

	// The handshake happens before the read loop starts, so read the
	// ack directly.
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return protocol.HelloAck{}, fmt.Errorf("adapter: read hello_ack: %w", err)
	}
	var reply protocol.Envelope
	if err := json.Unmarshal(data, &reply); err != nil {
		return protocol.HelloAck{}, fmt.Errorf("adapter: unmarshal hello_ack: %w", err)
	}
	if reply.Type == protocol.MsgError {
		var perr protocol.Error
		_ = json.Unmarshal(reply.Payload, &perr)
		return protocol.HelloAck{}, fmt.Errorf("adapter: handshake rejected: %s", perr.Message)
	}
	if reply.Type != protocol.MsgHelloAck {
		return protocol.HelloAck{}, fmt.Errorf("adapter: expected hello_ack, got %s", reply.Type)
	}

	var ack protocol.HelloAck
	if err := json.Unmarshal(reply.Payload, &ack); err != nil {
		return protocol.HelloAck{}, fmt.Errorf("adapter: unmarshal ack payload: %w", err)
	}
	return ack, nil
}

// SendCapture hands a summary to the gateway for consolidation and
// handoff. Fire-and-forget: failures arrive via OnError.
func (c *Client) SendCapture(ctx context.Context, capture protocol.Capture) error {
	env, err := protocol.NewEnvelope(protocol.MsgCapture, uuid.NewString(), capture)
	if err != nil {
		return err
	}
	return c.write(ctx, env)
}

// SendResponse relays this session's finished reply, memory note
// included, back to the gateway.
func (c *Client) SendResponse(ctx context.Context, content string) error {
	env, err := protocol.NewEnvelope(protocol.MsgResponse, uuid.NewString(), protocol.Response{Content: content})
	if err != nil {
		return err
	}
	return c.write(ctx, env)
}

// Ready asks the gateway whether this session has pending work. Called
// once the session surface is interactive.
func (c *Client) Ready(ctx context.Context) (protocol.ReadyResult, error) {
	reply, err := c.request(ctx, protocol.MsgReady, nil)
	if err != nil {
		return protocol.ReadyResult{}, err
	}
	var res protocol.ReadyResult
	if err := json.Unmarshal(reply.Payload, &res); err != nil {
		return protocol.ReadyResult{}, fmt.Errorf("adapter: unmarshal ready_result: %w", err)
	}
	return res, nil
}

// ListAgents fetches the agent roster, minus excludeKey.
func (c *Client) ListAgents(ctx context.Context, excludeKey string) ([]protocol.AgentInfo, error) {
	reply, err := c.request(ctx, protocol.MsgListAgents, protocol.ListAgents{ExcludeKey: excludeKey})
	if err != nil {
		return nil, err
	}
	var roster protocol.Agents
	if err := json.Unmarshal(reply.Payload, &roster); err != nil {
		return nil, fmt.Errorf("adapter: unmarshal agents: %w", err)
	}
	return roster.Agents, nil
}

// RelayResponse watches the session transcript until the reply stops
// growing, then sends the grown portion as this session's response.
func (c *Client) RelayResponse(ctx context.Context, obs quiescence.Observer, settings quiescence.Settings, baseline string) error {
	detector := quiescence.NewDetector(obs, settings)
	reply, err := detector.Wait(ctx, baseline)
	if err != nil {
		return fmt.Errorf("adapter: wait for reply: %w", err)
	}
	return c.SendResponse(ctx, reply)
}

// request sends an envelope and blocks until the reply with the same
// ID arrives.
func (c *Client) request(ctx context.Context, typ protocol.MessageType, payload any) (protocol.Envelope, error) {
	id := uuid.NewString()
	ch := make(chan protocol.Envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return protocol.Envelope{}, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	env, err := protocol.NewEnvelope(typ, id, payload)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if err := c.write(ctx, env); err != nil {
		return protocol.Envelope{}, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case reply := <-ch:
		if reply.Type == protocol.MsgError {
			var perr protocol.Error
			_ = json.Unmarshal(reply.Payload, &perr)
			return protocol.Envelope{}, fmt.Errorf("adapter: %s request failed: %s", typ, perr.Message)
		}
		return reply, nil
	case <-c.done:
		return protocol.Envelope{}, ErrClosed
	case <-timeoutCtx.Done():
		return protocol.Envelope{}, fmt.Errorf("adapter: %s request: %w", typ, timeoutCtx.Err())
	}
}

func (c *Client) write(ctx context.Context, env protocol.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// readLoop routes replies to in-flight requests and pushes to the
// configured callbacks. It exits when the connection drops.
func (c *Client) readLoop() {
	defer close(c.done)
	ctx := context.Background()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("adapter: connection lost", "error", err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("adapter: invalid message", "error", err)
			continue
		}

		// Replies to in-flight requests win over push handling.
		if env.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- env:
				default:
				}
				continue
			}
		}

		switch env.Type {
		case protocol.MsgCritique:
			var crit protocol.Critique
			if err := json.Unmarshal(env.Payload, &crit); err != nil {
				c.logger.Warn("adapter: invalid critique", "error", err)
				continue
			}
			if c.opts.OnCritique != nil {
				c.opts.OnCritique(crit.Content)
			}

		case protocol.MsgOpenSession:
			var open protocol.OpenSession
			if err := json.Unmarshal(env.Payload, &open); err != nil {
				c.logger.Warn("adapter: invalid open_session", "error", err)
				continue
			}
			if c.opts.OnOpenSession != nil {
				c.opts.OnOpenSession(open)
			}

		case protocol.MsgError:
			var perr protocol.Error
			if err := json.Unmarshal(env.Payload, &perr); err != nil {
				continue
			}
			if c.opts.OnError != nil {
				c.opts.OnError(perr.Message)
			} else {
				c.logger.Warn("adapter: gateway error", "message", perr.Message)
			}

		default:
			c.logger.Warn("adapter: unexpected message type", "type", env.Type)
		}
	}
}
