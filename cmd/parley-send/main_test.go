package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"parley/internal/version"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stdin should not be read")
}

func TestRunWithSenderVersionFlag(t *testing.T) {
	previous := version.Version
	version.Version = "1.2.3"
	t.Cleanup(func() {
		version.Version = previous
	})

	var out, stderr bytes.Buffer
	code := runWithSender([]string{"--version"}, strings.NewReader(""), &out, &stderr, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if out.String() != "parley-send version 1.2.3\n" {
		t.Fatalf("unexpected version output: %q", out.String())
	}
}

func TestRunWithSenderVersionFlagDev(t *testing.T) {
	previous := version.Version
	version.Version = "dev"
	t.Cleanup(func() {
		version.Version = previous
	})

	var out, stderr bytes.Buffer
	code := runWithSender([]string{"--version"}, strings.NewReader(""), &out, &stderr, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if out.String() != "parley-send dev\n" {
		t.Fatalf("unexpected version output: %q", out.String())
	}
}

func TestRunWithSenderHelp(t *testing.T) {
	var out, stderr bytes.Buffer
	code := runWithSender([]string{"--help"}, strings.NewReader(""), &out, &stderr, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Usage: parley-send") {
		t.Fatalf("expected help output, got %q", stderr.String())
	}
}

func TestRunWithSenderReadsTaskFromStdin(t *testing.T) {
	var captured Config
	send := func(cfg Config) error {
		captured = cfg
		return nil
	}
	var out, stderr bytes.Buffer
	code := runWithSender([]string{}, strings.NewReader("  draft the brief  \n"), &out, &stderr, send)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr.String())
	}
	if captured.Task != "draft the brief" {
		t.Fatalf("expected trimmed stdin task, got %q", captured.Task)
	}
}

func TestRunWithSenderArgTaskSkipsStdin(t *testing.T) {
	var captured Config
	send := func(cfg Config) error {
		captured = cfg
		return nil
	}
	var out, stderr bytes.Buffer
	code := runWithSender([]string{"draft", "the", "brief"}, failingReader{}, &out, &stderr, send)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr.String())
	}
	if captured.Task != "draft the brief" {
		t.Fatalf("expected arg task, got %q", captured.Task)
	}
}

func TestRunWithSenderRequiresTask(t *testing.T) {
	var out, stderr bytes.Buffer
	code := runWithSender([]string{}, strings.NewReader("   \n"), &out, &stderr, nil)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "task required") {
		t.Fatalf("expected task required message, got %q", stderr.String())
	}
}

func TestRunWithSenderDebugImpliesVerbose(t *testing.T) {
	send := func(cfg Config) error {
		if !cfg.Verbose {
			t.Fatalf("expected debug to imply verbose")
		}
		return nil
	}
	var out, stderr bytes.Buffer
	if code := runWithSender([]string{"--debug", "task"}, strings.NewReader(""), &out, &stderr, send); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRunWithSenderPropagatesSendErrorCode(t *testing.T) {
	send := func(cfg Config) error {
		return sendErr(2, "run failed: quorum lost")
	}
	var out, stderr bytes.Buffer
	code := runWithSender([]string{"task"}, strings.NewReader(""), &out, &stderr, send)
	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "quorum lost") {
		t.Fatalf("expected failure message, got %q", stderr.String())
	}
}

func TestRunCompletionBash(t *testing.T) {
	var out, stderr bytes.Buffer
	if code := runCompletion([]string{"bash"}, &out, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(out.String(), "complete -F _parley_send_complete parley-send") {
		t.Fatalf("expected bash completion script, got %q", out.String())
	}
}

func TestRunCompletionRejectsUnknownShell(t *testing.T) {
	var out, stderr bytes.Buffer
	if code := runCompletion([]string{"fish"}, &out, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage: parley-send completion") {
		t.Fatalf("expected usage message, got %q", stderr.String())
	}
}
