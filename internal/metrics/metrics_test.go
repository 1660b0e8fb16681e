package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegistryCounters(t *testing.T) {
	registry := &Registry{}
	registry.IncRunStarted()
	registry.IncRunStarted()
	registry.IncRunCompleted()
	registry.IncTurnExecuted()
	registry.IncTurnTimeout()
	registry.IncSelection("roundrobin")
	registry.IncSelection("roundrobin")
	registry.IncSelection("random")

	var out strings.Builder
	if err := registry.WritePrometheus(&out); err != nil {
		t.Fatalf("write prometheus: %v", err)
	}
	text := out.String()

	for _, want := range []string{
		"parley_runs_started_total 2",
		"parley_runs_completed_total 1",
		"parley_turns_executed_total 1",
		"parley_turn_timeouts_total 1",
		`parley_selections_total{strategy="random"} 1`,
		`parley_selections_total{strategy="roundrobin"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, text)
		}
	}
}

func TestRecordActivityTracksFailuresAndRetries(t *testing.T) {
	registry := &Registry{}
	registry.RecordActivity("TriggerAgentActivity", 50*time.Millisecond, nil, 1)
	registry.RecordActivity("TriggerAgentActivity", 30*time.Millisecond, errors.New("boom"), 2)

	var out strings.Builder
	if err := registry.WritePrometheus(&out); err != nil {
		t.Fatalf("write prometheus: %v", err)
	}
	text := out.String()

	if !strings.Contains(text, `parley_activity_duration_seconds_count{activity="TriggerAgentActivity"} 2`) {
		t.Fatalf("expected activity count 2, got:\n%s", text)
	}
	if !strings.Contains(text, `parley_activity_failures_total{activity="TriggerAgentActivity"} 1`) {
		t.Fatalf("expected 1 failure, got:\n%s", text)
	}
	if !strings.Contains(text, `parley_activity_retries_total{activity="TriggerAgentActivity"} 1`) {
		t.Fatalf("expected 1 retry, got:\n%s", text)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var registry *Registry
	registry.IncRunStarted()
	registry.IncSelection("random")
	registry.RecordActivity("x", time.Second, nil, 1)
	if err := registry.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("nil registry write: %v", err)
	}
}
