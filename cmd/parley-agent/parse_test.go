package main

import (
	"errors"
	"flag"
	"io"
	"strings"
	"testing"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs([]string{"echo"}, io.Discard)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Name != "echo" {
		t.Fatalf("expected name echo, got %q", cfg.Name)
	}
	if cfg.Prefix != "echo:" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}
	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Fatalf("expected default nats url, got %q", cfg.NATSURL)
	}
	if cfg.ServerURL != "http://localhost:8130" {
		t.Fatalf("expected default server url, got %q", cfg.ServerURL)
	}
	if cfg.NoRegister {
		t.Fatalf("expected registration enabled by default")
	}
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := parseArgs([]string{
		"--prefix", "critic:",
		"--nats-url", "nats://bus:4222",
		"--url", "http://daemon:8130",
		"--token", "secret",
		"--no-register",
		"critic",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Name != "critic" || cfg.Prefix != "critic:" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.NATSURL != "nats://bus:4222" || cfg.ServerURL != "http://daemon:8130" {
		t.Fatalf("unexpected urls: %+v", cfg)
	}
	if cfg.Token != "secret" || !cfg.NoRegister {
		t.Fatalf("unexpected auth config: %+v", cfg)
	}
}

func TestParseArgsEnvDefaults(t *testing.T) {
	t.Setenv("PARLEY_URL", "http://env:8130")
	t.Setenv("PARLEY_TOKEN", "env-token")
	t.Setenv("PARLEY_NATS_URL", "nats://env:4222")

	cfg, err := parseArgs([]string{"echo"}, io.Discard)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.ServerURL != "http://env:8130" || cfg.Token != "env-token" || cfg.NATSURL != "nats://env:4222" {
		t.Fatalf("expected env defaults, got %+v", cfg)
	}
}

func TestParseArgsRequiresName(t *testing.T) {
	var errOut strings.Builder
	_, err := parseArgs(nil, &errOut)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "agent name required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseArgsRejectsSubjectBreakingNames(t *testing.T) {
	for _, name := range []string{"bad.name", "bad name", "bad*", "bad>"} {
		if _, err := parseArgs([]string{name}, io.Discard); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestParseArgsHelp(t *testing.T) {
	var errOut strings.Builder
	_, err := parseArgs([]string{"-h"}, &errOut)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(errOut.String(), "Usage: parley-agent") {
		t.Fatalf("expected help output, got %q", errOut.String())
	}
}

func TestParseArgsVersion(t *testing.T) {
	cfg, err := parseArgs([]string{"--version"}, io.Discard)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if !cfg.ShowVersion {
		t.Fatalf("expected show version set")
	}
}
