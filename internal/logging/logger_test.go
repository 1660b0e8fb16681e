package logging

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)

	logger.Info("run started", map[string]string{"instance_id": "run-1"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "run started" {
		t.Fatalf("expected message run started, got %q", entry.Message)
	}
	if entry.Context["instance_id"] != "run-1" {
		t.Fatalf("expected context instance_id=run-1, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, io.Discard)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerWithMergesBaseContext(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelDebug, io.Discard).With(map[string]string{
		"component": "orchestrator",
	})

	logger.Debug("selected speaker", map[string]string{"agent": "alpha"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].Context
	if ctx["component"] != "orchestrator" {
		t.Fatalf("expected component from base context, got %v", ctx)
	}
	if ctx["agent"] != "alpha" {
		t.Fatalf("expected agent field, got %v", ctx)
	}
}

func TestLoggerStreamDeliversAllEntries(t *testing.T) {
	logger := NewLoggerWithOutput(NewLogBuffer(50), LevelInfo, io.Discard)
	output, cancel := logger.Subscribe()
	defer cancel()

	const total = 200
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			logger.Info("message", nil)
		}
		close(done)
	}()

	received := 0
	deadline := time.After(2 * time.Second)
	for received < total {
		select {
		case <-output:
			received++
		case <-deadline:
			t.Fatalf("timed out after receiving %d entries", received)
		}
	}

	<-done
}

func TestFormatEntrySortsContextKeys(t *testing.T) {
	line := formatEntry(LogEntry{
		Level:   LevelInfo,
		Message: "turn completed",
		Context: map[string]string{"turn": "2", "agent": "beta", "instance_id": "run-9"},
	})

	if !strings.HasPrefix(line, `level=info msg="turn completed"`) {
		t.Fatalf("unexpected prefix: %s", line)
	}
	agentIdx := strings.Index(line, "agent=")
	instanceIdx := strings.Index(line, "instance_id=")
	turnIdx := strings.Index(line, "turn=")
	if agentIdx == -1 || instanceIdx == -1 || turnIdx == -1 {
		t.Fatalf("missing context keys: %s", line)
	}
	if !(agentIdx < instanceIdx && instanceIdx < turnIdx) {
		t.Fatalf("context keys not sorted: %s", line)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewLogHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast(LogEntry{Message: "first"})
	hub.Broadcast(LogEntry{Message: "second"})

	entry := <-ch
	if entry.Message != "first" {
		t.Fatalf("expected first entry, got %q", entry.Message)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second entry dropped, got %q", extra.Message)
	default:
	}
}

func TestHubCloseStopsDelivery(t *testing.T) {
	hub := NewLogHub()
	ch, _ := hub.Subscribe(1)

	hub.Close()
	hub.Broadcast(LogEntry{Message: "late"})

	if _, open := <-ch; open {
		t.Fatalf("expected subscriber channel closed")
	}
}
