package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/crosstalk/internal/orchestrator"
	"github.com/flemzord/crosstalk/internal/registry"
)

// fakeOrch records calls and returns canned results.
type fakeOrch struct {
	mu        sync.Mutex
	captures  []orchestrator.CaptureRequest
	responses map[string]string
	ready     map[string]orchestrator.ReadyResult
	agents    []registry.Agent
	capErr    error
}

func newFakeOrch() *fakeOrch {
	return &fakeOrch{
		responses: make(map[string]string),
		ready:     make(map[string]orchestrator.ReadyResult),
	}
}

func (f *fakeOrch) Capture(_ context.Context, req orchestrator.CaptureRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capErr != nil {
		return f.capErr
	}
	f.captures = append(f.captures, req)
	return nil
}

func (f *fakeOrch) Ready(sessionID string) orchestrator.ReadyResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready[sessionID]
}

func (f *fakeOrch) Response(_ context.Context, sessionID, rawContent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[sessionID] = rawContent
}

func (f *fakeOrch) ListAgents(excludeKey string) []registry.Agent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]registry.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		if a.Key != excludeKey {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeOrch) Pending() (int, int) { return 0, 0 }

func (f *fakeOrch) captured() []orchestrator.CaptureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orchestrator.CaptureRequest(nil), f.captures...)
}

func (f *fakeOrch) responseFor(sessionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responses[sessionID]
}

// newTestGateway builds a provisioned Gateway around a fake
// orchestrator, without the module lifecycle or a real listener.
func newTestGateway(t *testing.T, orch Orchestrator) *Gateway {
	t.Helper()

	g := &Gateway{}
	g.config.defaults()
	g.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	g.hub = NewHub(g.logger, time.Second)
	g.orch = orch
	g.startedAt = time.Now()
	return g
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
