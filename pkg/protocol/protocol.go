// Package protocol defines the wire contract between agent adapters
// and the crosstalk gateway. Every WebSocket message is an Envelope;
// the payload shape depends on the message type.
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of message in an Envelope.
type MessageType string

// Message types exchanged over the WebSocket connection.
const (
	// MsgHello is sent by an adapter immediately after connecting.
	MsgHello MessageType = "hello"
	// MsgHelloAck answers a hello.
	MsgHelloAck MessageType = "hello_ack"
	// MsgCapture carries a source session's summary and handoff target.
	// Fire-and-forget: no reply.
	MsgCapture MessageType = "capture"
	// MsgListAgents requests the agent roster; answered with MsgAgents.
	MsgListAgents MessageType = "list_agents"
	// MsgAgents answers a list_agents request.
	MsgAgents MessageType = "agents"
	// MsgReady asks whether the session has pending work; always
	// answered with MsgReadyResult, even for unrelated sessions.
	MsgReady MessageType = "ready"
	// MsgReadyResult answers a ready request.
	MsgReadyResult MessageType = "ready_result"
	// MsgResponse carries a target session's finished reply.
	// Fire-and-forget: no reply.
	MsgResponse MessageType = "response"
	// MsgCritique pushes a relayed reply to a source session.
	// Best-effort: the gateway never retries.
	MsgCritique MessageType = "critique"
	// MsgOpenSession instructs an adapter host to open a fresh session.
	MsgOpenSession MessageType = "open_session"
	// MsgError reports a protocol-level failure.
	MsgError MessageType = "error"
)

// Envelope is the wire format for all messages. ID correlates a
// request with its reply for the request/response message pairs.
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope builds an envelope around a payload, which must marshal
// cleanly to JSON.
func NewEnvelope(t MessageType, id string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, ID: id, Payload: raw, Timestamp: time.Now().UTC()}, nil
}

// Marshal encodes the envelope for the wire.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Role distinguishes the two kinds of adapter connections.
type Role string

const (
	// RoleSession is a connection representing one agent session.
	RoleSession Role = "session"
	// RoleHost is a connection that can open new sessions for one or
	// more agents.
	RoleHost Role = "host"
)

// Hello is the first message on every connection.
type Hello struct {
	// Token is the shared pairing token, when the gateway requires one.
	Token string `json:"token,omitempty"`
	// Role selects session or host behavior.
	Role Role `json:"role"`
	// SessionID identifies a session connection. Sessions opened by the
	// orchestrator reuse the ID from the open_session command; sessions
	// the user opened by hand send an empty ID and receive one.
	SessionID string `json:"session_id,omitempty"`
	// AgentKeys lists the agents a host connection can open sessions
	// for. Ignored for session connections.
	AgentKeys []string `json:"agent_keys,omitempty"`
}

// HelloAck confirms or rejects a hello.
type HelloAck struct {
	Accepted  bool   `json:"accepted"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Entity is the wire form of a summarized entity.
type Entity struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Summary is the structured self-reflection a source agent produces.
// All fields are optional; the gateway normalizes and never trusts the
// shape.
type Summary struct {
	Topic          string   `json:"topic,omitempty"`
	UserGoal       string   `json:"user_goal,omitempty"`
	CurrentTask    string   `json:"current_task,omitempty"`
	ImportantFacts []string `json:"important_facts,omitempty"`
	DecisionsMade  []string `json:"decisions_made,omitempty"`
	Entities       []Entity `json:"entities,omitempty"`
	OpenQuestions  []string `json:"open_questions,omitempty"`
	Constraints    []string `json:"constraints,omitempty"`
}

// Capture is sent by a source session to initiate a handoff.
type Capture struct {
	Summary        Summary `json:"summary"`
	TargetAgent    string  `json:"target_agent"`
	SourceModel    string  `json:"source_model,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
}

// ListAgents requests the roster, minus the caller's own agent.
type ListAgents struct {
	ExcludeKey string `json:"exclude_key,omitempty"`
}

// AgentInfo is one roster entry.
type AgentInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

// Agents answers a ListAgents request.
type Agents struct {
	Agents []AgentInfo `json:"agents"`
}

// ReadyResult answers a ready request. Inject is false when the
// session has no pending work.
type ReadyResult struct {
	Inject         bool   `json:"inject"`
	ContextBlock   string `json:"context_block,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Response carries a target session's finished raw reply, memory note
// included.
type Response struct {
	Content string `json:"content"`
}

// Critique is pushed to a source session with the responding agent's
// attributed reply.
type Critique struct {
	Content string `json:"content"`
}

// OpenSession instructs an adapter host to open a new session surface
// for the agent and attach to the gateway under SessionID.
type OpenSession struct {
	SessionID string `json:"session_id"`
	AgentKey  string `json:"agent_key"`
	EntryURL  string `json:"entry_url"`
}

// Error reports a protocol-level failure tied to the request with the
// same envelope ID.
type Error struct {
	Message string `json:"message"`
}
