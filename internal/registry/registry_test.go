package registry

import (
	"context"
	"path/filepath"
	"testing"

	"parley/internal/store"
)

func newTestClient(t *testing.T, selfName string) *Client {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	client, err := New(Options{Store: s, Key: "agents", SelfName: selfName})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGetAgentsExclusions(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "parley")

	if err := client.RegisterSelf(ctx, "parley", "messagebus"); err != nil {
		t.Fatalf("register self: %v", err)
	}
	for _, name := range []string{"alpha", "beta"} {
		if err := client.Register(ctx, store.AgentRecord{Name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := client.Register(ctx, store.AgentRecord{Name: "other-orch", Orchestrator: true}); err != nil {
		t.Fatalf("register orchestrator: %v", err)
	}

	all, err := client.GetAgents(ctx, GetAgentsOptions{})
	if err != nil {
		t.Fatalf("get agents: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}

	workers, err := client.GetAgents(ctx, GetAgentsOptions{ExcludeSelf: true, ExcludeOrchestrators: true})
	if err != nil {
		t.Fatalf("get workers: %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("expected 2 workers, got %d: %v", len(workers), workers)
	}
	if _, ok := workers["parley"]; ok {
		t.Fatalf("expected self excluded")
	}
	if _, ok := workers["other-orch"]; ok {
		t.Fatalf("expected orchestrators excluded")
	}
}

func TestLookupMissingAgent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "parley")

	record, err := client.Lookup(ctx, "ghost")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record for unknown agent, got %+v", record)
	}
}

func TestRegisterRequiresName(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "parley")

	if err := client.Register(ctx, store.AgentRecord{}); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestRegisterSelfMarksOrchestrator(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "parley")

	if err := client.RegisterSelf(ctx, "beacon", "messagebus"); err != nil {
		t.Fatalf("register self: %v", err)
	}
	record, err := client.Lookup(ctx, "parley")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if record == nil || !record.Orchestrator {
		t.Fatalf("expected orchestrator record, got %+v", record)
	}
	if record.Topic != "beacon" {
		t.Fatalf("expected topic beacon, got %q", record.Topic)
	}
	if record.Metadata["pubsub"] != "messagebus" {
		t.Fatalf("expected pubsub metadata, got %v", record.Metadata)
	}
}

func TestDeregister(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "parley")

	if err := client.Register(ctx, store.AgentRecord{Name: "alpha"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := client.Deregister(ctx, "alpha"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	record, err := client.Lookup(ctx, "alpha")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if record != nil {
		t.Fatalf("expected agent removed, got %+v", record)
	}
}
