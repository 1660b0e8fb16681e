package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"parley/internal/cli"
)

const defaultServerURL = "http://localhost:8130"

const (
	defaultWaitTimeout  = 30 * time.Minute
	defaultPollInterval = 2 * time.Second
)

type Config struct {
	URL          string
	Token        string
	Task         string
	Wait         bool
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Verbose      bool
	Debug        bool
	ShowVersion  bool
	LogWriter    io.Writer
	Output       io.Writer
}

func parseArgs(args []string, errOut io.Writer) (Config, error) {
	fs := flag.NewFlagSet("parley-send", flag.ContinueOnError)
	fs.SetOutput(errOut)
	urlFlag := fs.String("url", "", "Parley server URL (env: PARLEY_URL, default: http://localhost:8130)")
	tokenFlag := fs.String("token", "", "Auth token (env: PARLEY_TOKEN, default: none)")
	noWaitFlag := fs.Bool("no-wait", false, "Print the run id and exit without waiting")
	timeoutFlag := fs.Duration("timeout", defaultWaitTimeout, "Give up waiting after this long (0 waits forever)")
	pollFlag := fs.Duration("poll-interval", defaultPollInterval, "Delay between run status checks")
	verboseFlag := fs.Bool("verbose", false, "Verbose output")
	debugFlag := fs.Bool("debug", false, "Debug output (implies --verbose)")
	helpVersion := cli.AddHelpVersionFlags(fs, "Show this help message", "Print version and exit")
	fs.Usage = func() {
		printSendHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if helpVersion.Help {
		fs.Usage()
		return Config{}, flag.ErrHelp
	}

	if helpVersion.Version {
		return Config{ShowVersion: true}, nil
	}

	if *pollFlag <= 0 {
		err := fmt.Errorf("poll interval must be positive, got %s", *pollFlag)
		fmt.Fprintln(errOut, err)
		return Config{}, err
	}
	if *timeoutFlag < 0 {
		err := fmt.Errorf("timeout cannot be negative, got %s", *timeoutFlag)
		fmt.Fprintln(errOut, err)
		return Config{}, err
	}

	url := strings.TrimSpace(*urlFlag)
	if url == "" {
		url = cli.EnvOr("PARLEY_URL", defaultServerURL)
	}

	token := strings.TrimSpace(*tokenFlag)
	if token == "" {
		token = strings.TrimSpace(cli.EnvOr("PARLEY_TOKEN", ""))
	}

	return Config{
		URL:          url,
		Token:        token,
		Task:         strings.TrimSpace(strings.Join(fs.Args(), " ")),
		Wait:         !*noWaitFlag,
		WaitTimeout:  *timeoutFlag,
		PollInterval: *pollFlag,
		Verbose:      *verboseFlag,
		Debug:        *debugFlag,
	}, nil
}

func printSendHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: parley-send [options] [task...]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Submit a task to the parley orchestrator and wait for the result")
	fmt.Fprintln(out, "")
	cli.WriteOptionGroup(out, "Options", []cli.Option{
		{Flag: "--url URL", Desc: "Parley server URL (env: PARLEY_URL, default: http://localhost:8130)"},
		{Flag: "--token TOKEN", Desc: "Auth token (env: PARLEY_TOKEN, default: none)"},
		{Flag: "--no-wait", Desc: "Print the run id and exit without waiting"},
		{Flag: "--timeout DURATION", Desc: "Give up waiting after this long (default: 30m, 0 waits forever)"},
		{Flag: "--poll-interval DURATION", Desc: "Delay between run status checks (default: 2s)"},
		{Flag: "--verbose", Desc: "Show request and polling details"},
		{Flag: "--debug", Desc: "Show detailed debug info (implies --verbose)"},
		{Flag: "--help", Desc: "Show this help message"},
		{Flag: "--version", Desc: "Print version and exit"},
	})
	fmt.Fprintln(out, "Arguments:")
	fmt.Fprintln(out, "  task  Task text for the orchestrator; read from stdin when omitted")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  parley-send \"summarize the incident timeline\"")
	fmt.Fprintln(out, "  cat task.txt | parley-send --timeout 10m")
	fmt.Fprintln(out, "  parley-send --no-wait --url http://remote:8130 draft a rollout plan")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Exit codes:")
	fmt.Fprintln(out, "  0  Run completed (or submitted with --no-wait)")
	fmt.Fprintln(out, "  1  Usage error")
	fmt.Fprintln(out, "  2  Run failed")
	fmt.Fprintln(out, "  3  Network or server error")
	fmt.Fprintln(out, "  4  Timed out waiting for completion")
}
