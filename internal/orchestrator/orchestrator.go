// Package orchestrator is the central state machine brokering handoffs
// between agent sessions. It receives capture, ready, and response
// events from adapters, drives the memory engine, opens target
// sessions, and relays replies back to the originating session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/crosstalk/internal/memory"
	"github.com/flemzord/crosstalk/internal/metrics"
	"github.com/flemzord/crosstalk/internal/registry"
	"github.com/google/uuid"
)

const mergeTimeout = 15 * time.Second

// SessionOpener opens a fresh session for a target agent and returns
// its session ID. Implemented by the gateway.
type SessionOpener interface {
	OpenSession(ctx context.Context, agent registry.Agent) (string, error)
}

// CritiqueSender pushes a critique to a source session. Best-effort by
// contract: the orchestrator logs and drops delivery failures.
type CritiqueSender interface {
	SendCritique(ctx context.Context, sessionID, content string) error
}

// pendingHandoff tracks a target session that was opened but has not
// signalled readiness yet.
type pendingHandoff struct {
	contextBlock    string
	sourceSessionID string
	conversationID  string
	agentKey        string
	createdAt       time.Time
}

// pendingReview tracks a target session whose reply is awaited.
type pendingReview struct {
	sourceSessionID string
	conversationID  string
	agentKey        string
	createdAt       time.Time
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry  *registry.Registry
	Store     memory.Store
	Opener    SessionOpener
	Critiques CritiqueSender
	Logger    *slog.Logger
	Metrics   *metrics.Collector
}

// Orchestrator owns the two pending maps. All map transitions happen
// under one mutex, so each inbound event's state change is atomic with
// respect to every other event. A target session moves through
// NONE -> handoff pending -> review pending -> NONE, never skipping a
// state and never existing in both maps at once.
type Orchestrator struct {
	registry  *registry.Registry
	store     memory.Store
	opener    SessionOpener
	critiques CritiqueSender
	logger    *slog.Logger
	metrics   *metrics.Collector

	mu       sync.Mutex
	handoffs map[string]pendingHandoff
	reviews  map[string]pendingReview

	// convLocks serializes load-merge-store per conversation ID so two
	// concurrent captures for the same conversation cannot interleave
	// and silently drop a merge.
	convMu    sync.Mutex
	convLocks map[string]*sync.Mutex
}

// New creates an Orchestrator. Registry, Store, Opener, and Critiques
// are required; Logger and Metrics are optional.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil || cfg.Store == nil || cfg.Opener == nil || cfg.Critiques == nil {
		return nil, errors.New("orchestrator: registry, store, opener, and critiques are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:  cfg.Registry,
		store:     cfg.Store,
		opener:    cfg.Opener,
		critiques: cfg.Critiques,
		logger:    logger.With("component", "orchestrator"),
		metrics:   cfg.Metrics,
		handoffs:  make(map[string]pendingHandoff),
		reviews:   make(map[string]pendingReview),
		convLocks: make(map[string]*sync.Mutex),
	}, nil
}

// CaptureRequest is the payload of a capture event from a source
// adapter.
type CaptureRequest struct {
	Summary         memory.Summary
	TargetAgent     string
	SourceModel     string
	ConversationID  string
	SourceSessionID string
}

// Capture merges a source agent's summary into the conversation memory,
// opens a session for the target agent, and installs a pending handoff
// for it. Persistence failure degrades to formatting the raw summary so
// the handoff still proceeds; an unknown target agent or a failed
// session open aborts the capture.
func (o *Orchestrator) Capture(ctx context.Context, req CaptureRequest) error {
	if req.SourceSessionID == "" {
		return ErrMissingSession
	}

	agent, err := o.registry.Get(req.TargetAgent)
	if err != nil {
		return err
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		// First hop of a new chain.
		conversationID = uuid.NewString()
	}

	contextBlock := o.consolidate(ctx, conversationID, req.Summary)

	sessionID, err := o.opener.OpenSession(ctx, agent)
	if err != nil {
		return fmt.Errorf("%w: agent %q: %w", ErrOpenSession, agent.Key, err)
	}

	o.mu.Lock()
	o.handoffs[sessionID] = pendingHandoff{
		contextBlock:    contextBlock,
		sourceSessionID: req.SourceSessionID,
		conversationID:  conversationID,
		agentKey:        agent.Key,
		createdAt:       time.Now(),
	}
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.HandoffsTotal.Inc()
	}
	o.logger.Info("handoff installed",
		"conversation", conversationID,
		"target", agent.Key,
		"session", sessionID,
		"source_session", req.SourceSessionID,
	)
	return nil
}

// consolidate runs load-merge-store for the conversation and returns
// the formatted context block. Any persistence failure falls back to
// formatting the raw summary directly: the memory does not advance, but
// the handoff proceeds.
func (o *Orchestrator) consolidate(ctx context.Context, conversationID string, s memory.Summary) string {
	lock := o.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	mem, err := o.store.Load(ctx, conversationID)
	switch {
	case errors.Is(err, memory.ErrNotFound):
		mem = memory.New(now)
	case err != nil:
		o.logger.Warn("memory load failed, handing off statelessly",
			"conversation", conversationID, "error", err)
		if o.metrics != nil {
			o.metrics.PersistenceFallbacks.Inc()
		}
		return memory.FormatSummary(s)
	}

	mem.Merge(s, now)
	if o.metrics != nil {
		o.metrics.MergesTotal.Inc()
	}

	if err := o.store.Save(ctx, conversationID, mem); err != nil {
		o.logger.Warn("memory save failed, handing off statelessly",
			"conversation", conversationID, "error", err)
		if o.metrics != nil {
			o.metrics.PersistenceFallbacks.Inc()
		}
		return memory.FormatSummary(s)
	}

	return memory.Format(mem)
}

// ReadyResult answers a ready event. Inject is false when the session
// has no pending work, which is the normal case for sessions the
// orchestrator did not open.
type ReadyResult struct {
	Inject         bool
	ContextBlock   string
	ConversationID string
}

// Ready consumes the pending handoff for the session, if any,
// atomically converting it into a pending review. A session with no
// handoff gets a "no work" answer, never an error: ready events also
// arrive from sessions the user opened by hand.
func (o *Orchestrator) Ready(sessionID string) ReadyResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	h, ok := o.handoffs[sessionID]
	if !ok {
		return ReadyResult{Inject: false}
	}

	delete(o.handoffs, sessionID)
	o.reviews[sessionID] = pendingReview{
		sourceSessionID: h.sourceSessionID,
		conversationID:  h.conversationID,
		agentKey:        h.agentKey,
		createdAt:       time.Now(),
	}

	o.logger.Info("handoff consumed",
		"conversation", h.conversationID, "session", sessionID)

	return ReadyResult{
		Inject:         true,
		ContextBlock:   h.contextBlock,
		ConversationID: h.conversationID,
	}
}

// Response consumes the pending review for the session and relays the
// decoded reply to the source session as an attributed critique. A
// decoded memory update is merged asynchronously; merge and delivery
// failures are logged and never surface to the caller.
func (o *Orchestrator) Response(ctx context.Context, sessionID, rawContent string) {
	o.mu.Lock()
	rev, ok := o.reviews[sessionID]
	if ok {
		delete(o.reviews, sessionID)
	}
	o.mu.Unlock()

	if !ok {
		o.logger.Debug("response from untracked session ignored", "session", sessionID)
		return
	}

	reply, update := memory.Decode(rawContent)

	if update != nil {
		go o.mergeUpdate(rev.conversationID, *update)
	}

	displayName := rev.agentKey
	if agent, err := o.registry.Get(rev.agentKey); err == nil {
		displayName = agent.DisplayName
	}
	critique := fmt.Sprintf("[%s replied]\n\n%s", displayName, reply)

	if err := o.critiques.SendCritique(ctx, rev.sourceSessionID, critique); err != nil {
		// Best-effort push: the source session may be long gone.
		o.logger.Warn("critique delivery failed",
			"conversation", rev.conversationID,
			"source_session", rev.sourceSessionID,
			"error", err,
		)
		if o.metrics != nil {
			o.metrics.CritiquesFailed.Inc()
		}
		return
	}
	if o.metrics != nil {
		o.metrics.CritiquesDelivered.Inc()
	}
}

// mergeUpdate folds a decoded memory update into the conversation
// memory. Fire-and-forget: failures are logged only.
func (o *Orchestrator) mergeUpdate(conversationID string, s memory.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), mergeTimeout)
	defer cancel()

	lock := o.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	mem, err := o.store.Load(ctx, conversationID)
	if errors.Is(err, memory.ErrNotFound) {
		mem = memory.New(now)
	} else if err != nil {
		o.logger.Warn("memory update load failed", "conversation", conversationID, "error", err)
		return
	}

	mem.Merge(s, now)

	if err := o.store.Save(ctx, conversationID, mem); err != nil {
		o.logger.Warn("memory update save failed", "conversation", conversationID, "error", err)
		return
	}
	if o.metrics != nil {
		o.metrics.MemoryUpdatesTotal.Inc()
	}
}

// ListAgents returns the registry minus the caller's own agent.
// Stateless, no side effects.
func (o *Orchestrator) ListAgents(excludeKey string) []registry.Agent {
	return o.registry.List(excludeKey)
}

// PruneStale drops pending handoffs and reviews older than maxAge.
// Covers target sessions that were opened but never progressed, e.g. a
// tab the user closed before the adapter signalled ready.
func (o *Orchestrator) PruneStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	o.mu.Lock()
	defer o.mu.Unlock()

	pruned := 0
	for id, h := range o.handoffs {
		if h.createdAt.Before(cutoff) {
			delete(o.handoffs, id)
			pruned++
		}
	}
	for id, r := range o.reviews {
		if r.createdAt.Before(cutoff) {
			delete(o.reviews, id)
			pruned++
		}
	}
	if pruned > 0 {
		o.logger.Info("pruned stale handoffs", "count", pruned)
	}
	return pruned
}

// Pending reports the number of in-flight handoffs and reviews.
func (o *Orchestrator) Pending() (handoffs, reviews int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handoffs), len(o.reviews)
}

func (o *Orchestrator) conversationLock(conversationID string) *sync.Mutex {
	o.convMu.Lock()
	defer o.convMu.Unlock()
	lock, ok := o.convLocks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		o.convLocks[conversationID] = lock
	}
	return lock
}
