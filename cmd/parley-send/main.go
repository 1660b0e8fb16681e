package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"parley/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "completion" {
		os.Exit(runCompletion(os.Args[2:], os.Stdout, os.Stderr))
	}
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	return runWithSender(args, in, out, errOut, submitRun)
}

func runWithSender(args []string, in io.Reader, out, errOut io.Writer, send func(Config) error) int {
	cfg, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if cfg.ShowVersion {
		if version.Version == "" || version.Version == "dev" {
			fmt.Fprintln(out, "parley-send dev")
		} else {
			fmt.Fprintf(out, "parley-send version %s\n", version.Version)
		}
		return 0
	}
	if cfg.Debug {
		cfg.Verbose = true
	}
	cfg.LogWriter = errOut
	cfg.Output = out

	if cfg.Task == "" {
		payload, err := io.ReadAll(in)
		if err != nil {
			fmt.Fprintf(errOut, "read stdin: %v\n", err)
			return 3
		}
		cfg.Task = strings.TrimSpace(string(payload))
	}
	if cfg.Task == "" {
		fmt.Fprintln(errOut, "task required: pass it as an argument or on stdin")
		return 1
	}

	if send == nil {
		return 0
	}
	if err := send(cfg); err != nil {
		return handleSendError(err, errOut)
	}
	return 0
}
