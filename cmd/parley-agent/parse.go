package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"parley/internal/cli"
)

type Config struct {
	Name        string
	Prefix      string
	NATSURL     string
	ServerURL   string
	Token       string
	NoRegister  bool
	ShowVersion bool
}

func parseArgs(args []string, errOut io.Writer) (Config, error) {
	fs := flag.NewFlagSet("parley-agent", flag.ContinueOnError)
	fs.SetOutput(errOut)
	prefix := fs.String("prefix", "echo:", "Reply prefix")
	natsURL := fs.String("nats-url", defaultNATSURL(), "NATS server URL")
	serverURL := fs.String("url", defaultServerURL(), "parley daemon URL")
	token := fs.String("token", defaultToken(), "parley auth token")
	noRegister := fs.Bool("no-register", false, "Skip daemon registration")
	helper := cli.AddHelpVersionFlags(fs, "Show this help message", "Print version and exit")
	fs.Usage = func() {
		printHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if helper.Help {
		fs.Usage()
		return Config{}, flag.ErrHelp
	}

	if helper.Version {
		return Config{ShowVersion: true}, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return Config{}, fmt.Errorf("agent name required")
	}

	name := strings.TrimSpace(fs.Arg(0))
	if name == "" {
		fs.Usage()
		return Config{}, fmt.Errorf("agent name required")
	}
	if !isValidAgentName(name) {
		fs.Usage()
		return Config{}, fmt.Errorf("agent name %q must use letters, digits, hyphen or underscore", name)
	}

	return Config{
		Name:       name,
		Prefix:     *prefix,
		NATSURL:    *natsURL,
		ServerURL:  *serverURL,
		Token:      *token,
		NoRegister: *noRegister,
	}, nil
}

// isValidAgentName keeps names usable as NATS subject tokens; dots and
// wildcards would change subscription semantics.
func isValidAgentName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: parley-agent [flags] <agent-name>")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run a reference echo agent: listens on <agent-name>.trigger, remembers")
	fmt.Fprintln(out, "the broadcast task, and answers turn triggers over the bus.")
	fmt.Fprintln(out, "")
	cli.WriteOptionGroup(out, "Options", []cli.Option{
		{Flag: "--prefix <text>", Desc: "Reply prefix (default \"echo:\")"},
		{Flag: "--nats-url <url>", Desc: "NATS server URL (env: PARLEY_NATS_URL)"},
		{Flag: "--url <url>", Desc: "parley daemon URL (env: PARLEY_URL)"},
		{Flag: "--token <value>", Desc: "parley auth token (env: PARLEY_TOKEN)"},
		{Flag: "--no-register", Desc: "Skip registering with the daemon API"},
		{Flag: "--help", Desc: "Show this help message"},
		{Flag: "--version", Desc: "Print version and exit"},
	})
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  parley-agent echo")
	fmt.Fprintln(out, "  parley-agent --prefix \"critic:\" --url http://localhost:8130 critic")
}
