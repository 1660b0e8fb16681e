package cli

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"testing"
)

func TestHelpFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"-h"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Help {
		t.Fatalf("expected help flag set")
	}
}

func TestVersionFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"--version"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Version {
		t.Fatalf("expected version flag set")
	}
}

func TestWriteOptionGroup(t *testing.T) {
	var out bytes.Buffer
	WriteOptionGroup(&out, "Server options", []Option{
		{Flag: "-port <number>", Desc: "HTTP listen port"},
		{Flag: "-token <value>", Desc: "API auth token"},
	})

	text := out.String()
	if !strings.HasPrefix(text, "Server options:\n") {
		t.Fatalf("expected title line, got %q", text)
	}
	if !strings.Contains(text, "-port <number>") || !strings.Contains(text, "HTTP listen port") {
		t.Fatalf("expected option row, got %q", text)
	}
	if !strings.HasSuffix(text, "\n\n") {
		t.Fatalf("expected trailing blank line, got %q", text)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("PARLEY_CLI_TEST_VALUE", "from-env")
	if got := EnvOr("PARLEY_CLI_TEST_VALUE", "fallback"); got != "from-env" {
		t.Fatalf("expected env value, got %q", got)
	}

	t.Setenv("PARLEY_CLI_TEST_VALUE", "")
	if got := EnvOr("PARLEY_CLI_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for empty value, got %q", got)
	}
	if got := EnvOr("PARLEY_CLI_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for missing variable, got %q", got)
	}
}
