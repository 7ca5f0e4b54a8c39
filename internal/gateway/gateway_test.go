package gateway

import (
	"testing"
	"time"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.ws" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.ws")
	}
	if info.New == nil {
		t.Fatal("New func is nil")
	}

	mod := info.New()
	if _, ok := mod.(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}

	node := mustYAMLNode(t, "{}")
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:8787" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", g.config.WriteTimeout)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", g.config.ShutdownTimeout)
	}
	if g.config.OpenTimeout != 10*time.Second {
		t.Errorf("OpenTimeout = %v, want 10s", g.config.OpenTimeout)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}

	node := mustYAMLNode(t, `
bind: "0.0.0.0:9000"
pairing_token: "secret"
read_timeout: 2s
open_timeout: 3s
`)
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:9000" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if g.config.PairingToken != "secret" {
		t.Errorf("PairingToken = %q", g.config.PairingToken)
	}
	if g.config.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v", g.config.ReadTimeout)
	}
	if g.config.OpenTimeout != 3*time.Second {
		t.Errorf("OpenTimeout = %v", g.config.OpenTimeout)
	}
}

func TestGateway_ValidateBadBind(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Bind = "not a bind address"

	if err := g.Validate(); err == nil {
		t.Error("expected error for invalid bind address")
	}
}
