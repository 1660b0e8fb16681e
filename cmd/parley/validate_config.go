package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"parley/internal/config"
	"parley/internal/registry"
)

func runValidateConfig(args []string) int {
	return runValidateConfigWithOutput(args, os.Stdout, os.Stderr)
}

// runValidateConfigWithOutput checks the daemon config and, when one is
// configured or passed, the agents manifest. Exit code 1 means the daemon
// would refuse to start with these files.
func runValidateConfigWithOutput(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("parley config validate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "Config file path")
	manifestPath := fs.String("agents-manifest", "", "Agents manifest path")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "ERROR config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "ERROR config: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "OK config: orchestrator %s, strategy %s, %d max iterations\n",
		cfg.Orchestrator.Name, cfg.Orchestrator.Strategy, cfg.Orchestrator.MaxIterations)

	path := strings.TrimSpace(*manifestPath)
	if path == "" {
		path = cfg.Agents.ManifestPath
	}
	if path == "" {
		return 0
	}

	manifest, err := registry.LoadManifest(path)
	if err != nil {
		fmt.Fprintf(errOut, "ERROR manifest: %v\n", err)
		return 1
	}
	invalid := 0
	for _, agent := range manifest.Agents {
		if strings.TrimSpace(agent.Topic) == "" {
			fmt.Fprintf(out, "WARN agent %s: no topic, trigger defaults to %s.trigger\n", agent.Name, agent.Name)
		}
		if agent.Name == cfg.Orchestrator.Name {
			invalid++
			fmt.Fprintf(out, "ERROR agent %s: name collides with the orchestrator\n", agent.Name)
		}
	}
	if invalid > 0 {
		fmt.Fprintf(errOut, "manifest: %d invalid of %d agents\n", invalid, len(manifest.Agents))
		return 1
	}
	fmt.Fprintf(out, "OK manifest: %d agents\n", len(manifest.Agents))
	return 0
}
