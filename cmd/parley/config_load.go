package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"parley/internal/cli"
	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/version"
)

// serveConfig is the resolved daemon configuration: defaults, then config
// file, then PARLEY_* environment, then command-line flags.
type serveConfig struct {
	Config      config.Config
	ConfigPath  string
	ShowVersion bool
	Verbose     bool
	Quiet       bool

	flags flagValues
}

type flagValues struct {
	ConfigPath        string
	Port              int
	Token             string
	DataDir           string
	Name              string
	Strategy          string
	MaxIterations     int
	Timeout           int
	AgentsManifest    string
	WatchManifest     bool
	NATSURL           string
	NATSPort          int
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string
	Verbose           bool
	Quiet             bool

	// Set records which flags were provided, so unset flags never clobber
	// file or environment values with their zero defaults.
	Set map[string]bool
}

func parseFlags(args []string) (flagValues, *cli.HelpVersionFlags, error) {
	fs := flag.NewFlagSet("parley", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	values := flagValues{Set: map[string]bool{}}
	fs.StringVar(&values.ConfigPath, "config", "", "")
	fs.IntVar(&values.Port, "port", 0, "")
	fs.StringVar(&values.Token, "token", "", "")
	fs.StringVar(&values.DataDir, "data-dir", "", "")
	fs.StringVar(&values.Name, "name", "", "")
	fs.StringVar(&values.Strategy, "strategy", "", "")
	fs.IntVar(&values.MaxIterations, "max-iterations", 0, "")
	fs.IntVar(&values.Timeout, "timeout", 0, "")
	fs.StringVar(&values.AgentsManifest, "agents-manifest", "", "")
	fs.BoolVar(&values.WatchManifest, "watch-manifest", false, "")
	fs.StringVar(&values.NATSURL, "nats-url", "", "")
	fs.IntVar(&values.NATSPort, "nats-port", 0, "")
	fs.StringVar(&values.TemporalHost, "temporal-host", "", "")
	fs.StringVar(&values.TemporalNamespace, "temporal-namespace", "", "")
	fs.StringVar(&values.TaskQueue, "task-queue", "", "")
	fs.BoolVar(&values.Verbose, "verbose", false, "")
	fs.BoolVar(&values.Quiet, "quiet", false, "")
	helpVersion := cli.AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse(args); err != nil {
		return values, helpVersion, err
	}
	fs.Visit(func(f *flag.Flag) {
		values.Set[f.Name] = true
	})
	if helpVersion.Help {
		printHelp(os.Stdout)
		return values, helpVersion, flag.ErrHelp
	}
	return values, helpVersion, nil
}

// loadConfig resolves the serve configuration. Version requests short-circuit
// before the config file is read so -version works with a broken file.
func loadConfig(args []string) (serveConfig, error) {
	values, helpVersion, err := parseFlags(args)
	if err != nil {
		return serveConfig{}, err
	}

	resolved := serveConfig{
		ConfigPath:  values.ConfigPath,
		ShowVersion: helpVersion.Version,
		Verbose:     values.Verbose,
		Quiet:       values.Quiet,
		flags:       values,
	}
	if resolved.ShowVersion {
		return resolved, nil
	}

	cfg, err := config.Load(values.ConfigPath)
	if err != nil {
		return serveConfig{}, err
	}
	applyFlagOverrides(cfg, values)
	if err := cfg.Validate(); err != nil {
		return serveConfig{}, err
	}
	resolved.Config = *cfg
	return resolved, nil
}

func applyFlagOverrides(cfg *config.Config, values flagValues) {
	if values.Set["port"] {
		cfg.HTTP.Port = values.Port
	}
	if values.Set["token"] {
		cfg.HTTP.AuthToken = values.Token
	}
	if values.Set["data-dir"] {
		cfg.Store.DataDir = values.DataDir
	}
	if values.Set["name"] {
		cfg.Orchestrator.Name = values.Name
	}
	if values.Set["strategy"] {
		cfg.Orchestrator.Strategy = values.Strategy
	}
	if values.Set["max-iterations"] {
		cfg.Orchestrator.MaxIterations = values.MaxIterations
	}
	if values.Set["timeout"] {
		cfg.Orchestrator.TimeoutSeconds = values.Timeout
	}
	if values.Set["agents-manifest"] {
		cfg.Agents.ManifestPath = values.AgentsManifest
	}
	if values.Set["watch-manifest"] {
		cfg.Agents.Watch = values.WatchManifest
	}
	if values.Set["nats-url"] {
		cfg.NATS.URL = values.NATSURL
	}
	if values.Set["nats-port"] {
		cfg.NATS.Port = values.NATSPort
	}
	if values.Set["temporal-host"] {
		cfg.Temporal.HostPort = values.TemporalHost
	}
	if values.Set["temporal-namespace"] {
		cfg.Temporal.Namespace = values.TemporalNamespace
	}
	if values.Set["task-queue"] {
		cfg.Temporal.TaskQueue = values.TaskQueue
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "parley orchestrates turn-based conversations between agents.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  parley [serve] [flags]")
	fmt.Fprintln(out, "  parley config validate [-config <path>] [-agents-manifest <path>]")
	fmt.Fprintln(out, "  parley completion [bash|zsh]")
	fmt.Fprintln(out)
	cli.WriteOptionGroup(out, "Server options", []cli.Option{
		{Flag: "-config <path>", Desc: "Config file (default config/parley.yaml)"},
		{Flag: "-port <number>", Desc: "HTTP API port"},
		{Flag: "-token <value>", Desc: "Auth token for REST/WS"},
		{Flag: "-data-dir <path>", Desc: "Directory for SQLite stores and snapshots"},
	})
	cli.WriteOptionGroup(out, "Orchestration options", []cli.Option{
		{Flag: "-name <value>", Desc: "Orchestrator name"},
		{Flag: "-strategy <name>", Desc: "Speaker selection: random or roundrobin"},
		{Flag: "-max-iterations <n>", Desc: "Conversation turn limit"},
		{Flag: "-timeout <seconds>", Desc: "Per-turn agent response timeout"},
		{Flag: "-agents-manifest <path>", Desc: "Agent manifest YAML"},
		{Flag: "-watch-manifest", Desc: "Re-sync registry when the manifest changes"},
	})
	cli.WriteOptionGroup(out, "Transport options", []cli.Option{
		{Flag: "-nats-url <url>", Desc: "External NATS server (embedded when empty)"},
		{Flag: "-nats-port <number>", Desc: "Embedded NATS port"},
		{Flag: "-temporal-host <addr>", Desc: "Temporal frontend host:port"},
		{Flag: "-temporal-namespace <ns>", Desc: "Temporal namespace"},
		{Flag: "-task-queue <name>", Desc: "Temporal task queue"},
	})
	cli.WriteOptionGroup(out, "Logging options", []cli.Option{
		{Flag: "-verbose", Desc: "Enable debug logging"},
		{Flag: "-quiet", Desc: "Reduce logging to warnings"},
	})
}

func logVersionInfo(logger *logging.Logger) {
	info := version.GetVersionInfo()
	fields := map[string]string{
		"version": info.Version,
	}
	if info.GitCommit != "" {
		fields["commit"] = info.GitCommit
	}
	if info.Built != "" {
		fields["built"] = info.Built
	}
	logger.Info("parley starting", fields)
}

// logStartupFlags records flags the operator actually passed. The auth token
// value never reaches the log.
func logStartupFlags(logger *logging.Logger, values flagValues) {
	if len(values.Set) == 0 {
		return
	}
	names := make([]string, 0, len(values.Set))
	for name := range values.Set {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		display := flagDisplayValue(values, name)
		if display == "" {
			parts = append(parts, "--"+name)
			continue
		}
		parts = append(parts, "--"+name+" "+display)
	}
	logger.Info("startup flags", map[string]string{
		"flags": strings.Join(parts, " "),
	})
}

func flagDisplayValue(values flagValues, name string) string {
	switch name {
	case "token":
		return "****"
	case "config":
		return values.ConfigPath
	case "port":
		return strconv.Itoa(values.Port)
	case "data-dir":
		return values.DataDir
	case "name":
		return values.Name
	case "strategy":
		return values.Strategy
	case "max-iterations":
		return strconv.Itoa(values.MaxIterations)
	case "timeout":
		return strconv.Itoa(values.Timeout)
	case "agents-manifest":
		return values.AgentsManifest
	case "nats-url":
		return values.NATSURL
	case "nats-port":
		return strconv.Itoa(values.NATSPort)
	case "temporal-host":
		return values.TemporalHost
	case "temporal-namespace":
		return values.TemporalNamespace
	case "task-queue":
		return values.TaskQueue
	default:
		return ""
	}
}
