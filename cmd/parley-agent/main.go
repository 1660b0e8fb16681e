package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"parley/internal/version"
)

const (
	exitUsage   = 2
	exitConnect = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	cfg, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, err)
		return exitUsage
	}
	if cfg.ShowVersion {
		if version.Version == "" || version.Version == "dev" {
			fmt.Fprintln(out, "parley-agent dev")
		} else {
			fmt.Fprintf(out, "parley-agent version %s\n", version.Version)
		}
		return 0
	}

	return runAgent(cfg, out, errOut)
}
