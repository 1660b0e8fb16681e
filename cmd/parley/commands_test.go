package main

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"
)

func stubCommandDeps() commandDeps {
	return commandDeps{
		Stdout:            io.Discard,
		Stderr:            io.Discard,
		RunServe:          func(args []string) int { return 0 },
		RunValidateConfig: func(args []string) int { return 0 },
		RunCompletion:     func(args []string, out io.Writer, errOut io.Writer) int { return 0 },
	}
}

func TestResolveCommandDefaultsToServe(t *testing.T) {
	deps := stubCommandDeps()
	var gotArgs []string
	deps.RunServe = func(args []string) int {
		gotArgs = append([]string(nil), args...)
		return 2
	}

	cmd, cmdArgs := resolveCommand([]string{"-port", "9000"}, deps)
	if code := cmd.Run(cmdArgs); code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
	if !reflect.DeepEqual(gotArgs, []string{"-port", "9000"}) {
		t.Fatalf("expected flags forwarded, got %v", gotArgs)
	}
}

func TestResolveCommandServeSubcommand(t *testing.T) {
	deps := stubCommandDeps()
	var gotArgs []string
	deps.RunServe = func(args []string) int {
		gotArgs = append([]string(nil), args...)
		return 0
	}

	cmd, cmdArgs := resolveCommand([]string{"serve", "-verbose"}, deps)
	if code := cmd.Run(cmdArgs); code != 0 {
		t.Fatalf("expected code 0, got %d", code)
	}
	if !reflect.DeepEqual(gotArgs, []string{"-verbose"}) {
		t.Fatalf("expected serve keyword stripped, got %v", gotArgs)
	}
}

func TestResolveCommandConfigValidate(t *testing.T) {
	deps := stubCommandDeps()
	var gotArgs []string
	deps.RunValidateConfig = func(args []string) int {
		gotArgs = append([]string(nil), args...)
		return 5
	}

	cmd, cmdArgs := resolveCommand([]string{"config", "validate", "-config", "parley.yaml"}, deps)
	if code := cmd.Run(cmdArgs); code != 5 {
		t.Fatalf("expected code 5, got %d", code)
	}
	if !reflect.DeepEqual(gotArgs, []string{"-config", "parley.yaml"}) {
		t.Fatalf("expected args to be forwarded, got %v", gotArgs)
	}
}

func TestResolveCommandCompletion(t *testing.T) {
	deps := stubCommandDeps()
	var gotArgs []string
	var gotOut io.Writer
	var gotErr io.Writer
	deps.Stdout = &bytes.Buffer{}
	deps.Stderr = &bytes.Buffer{}
	deps.RunCompletion = func(args []string, out io.Writer, errOut io.Writer) int {
		gotArgs = append([]string(nil), args...)
		gotOut = out
		gotErr = errOut
		return 3
	}

	cmd, cmdArgs := resolveCommand([]string{"completion", "zsh"}, deps)
	if code := cmd.Run(cmdArgs); code != 3 {
		t.Fatalf("expected code 3, got %d", code)
	}
	if !reflect.DeepEqual(gotArgs, []string{"zsh"}) {
		t.Fatalf("expected args to be forwarded, got %v", gotArgs)
	}
	if gotOut != deps.Stdout || gotErr != deps.Stderr {
		t.Fatalf("expected completion to use provided writers")
	}
}

func TestRunCompletionBash(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	if code := runCompletion([]string{"bash"}, &out, &errOut); code != 0 {
		t.Fatalf("expected code 0, got %d", code)
	}
	if !strings.Contains(out.String(), "complete -F _parley_complete parley") {
		t.Fatalf("expected bash completion script, got %q", out.String())
	}
}

func TestRunCompletionRejectsUnknownShell(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	if code := runCompletion([]string{"fish"}, &out, &errOut); code != 1 {
		t.Fatalf("expected code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "usage: parley completion") {
		t.Fatalf("expected usage message, got %q", errOut.String())
	}
}
