// Package config loads the daemon configuration from YAML with environment
// overrides. Values resolve default, then file, then PARLEY_* environment;
// command-line flags are applied last by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "roundrobin"
)

type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	HTTP         HTTPConfig         `yaml:"http"`
	NATS         NATSConfig         `yaml:"nats"`
	Temporal     TemporalConfig     `yaml:"temporal"`
	Store        StoreConfig        `yaml:"store"`
	Agents       AgentsConfig       `yaml:"agents"`
	LogLevel     string             `yaml:"log_level"`
}

// OrchestratorConfig is the coordinator's own surface. Store names map to
// SQLite database filenames under the data dir; the registry key namespaces
// rows within the registry store; the state key names local snapshots.
type OrchestratorConfig struct {
	Name                    string `yaml:"name"`
	MessageBusName          string `yaml:"message_bus_name"`
	StateStoreName          string `yaml:"state_store_name"`
	StateKey                string `yaml:"state_key"`
	AgentsRegistryStoreName string `yaml:"agents_registry_store_name"`
	AgentsRegistryKey       string `yaml:"agents_registry_key"`
	BroadcastTopicName      string `yaml:"broadcast_topic_name"`
	MaxIterations           int    `yaml:"max_iterations"`
	TimeoutSeconds          int    `yaml:"timeout"`
	SaveStateLocally        bool   `yaml:"save_state_locally"`
	Strategy                string `yaml:"strategy"`
	CurrentSpeaker          string `yaml:"current_speaker"`
	CurrentAgentIndex       int    `yaml:"current_agent_index"`
}

type HTTPConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// NATSConfig selects an external server by URL, or an embedded one when the
// URL is empty.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
}

type AgentsConfig struct {
	ManifestPath string `yaml:"manifest"`
	Watch        bool   `yaml:"watch"`
}

// ValidationError reports a configuration value the daemon cannot start
// with.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func defaults() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			Name:                    "parley",
			MessageBusName:          "messagebus",
			StateStoreName:          "workflowstate",
			StateKey:                "workflow_state",
			AgentsRegistryStoreName: "agentsregistry",
			AgentsRegistryKey:       "agents",
			MaxIterations:           10,
			TimeoutSeconds:          300,
			Strategy:                StrategyRoundRobin,
		},
		HTTP: HTTPConfig{
			Port: 8130,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Temporal: TemporalConfig{
			HostPort:  "127.0.0.1:7233",
			Namespace: "default",
			TaskQueue: "parley-orchestration",
		},
		Store: StoreConfig{
			DataDir: "data",
		},
		LogLevel: "info",
	}
}

// Load reads the config file at path, falling back to PARLEY_CONFIG and then
// config/parley.yaml. A missing file is not an error; defaults plus
// environment apply.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("PARLEY_CONFIG")
	}
	if path == "" {
		path = "config/parley.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PARLEY_NAME"); v != "" {
		cfg.Orchestrator.Name = v
	}
	if v := os.Getenv("PARLEY_STRATEGY"); v != "" {
		cfg.Orchestrator.Strategy = v
	}
	if v := os.Getenv("PARLEY_BROADCAST_TOPIC"); v != "" {
		cfg.Orchestrator.BroadcastTopicName = v
	}
	if v := os.Getenv("PARLEY_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxIterations = n
		}
	}
	if v := os.Getenv("PARLEY_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("PARLEY_SAVE_STATE_LOCALLY"); v != "" {
		cfg.Orchestrator.SaveStateLocally = parseBool(v)
	}
	if v := os.Getenv("PARLEY_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = n
		}
	}
	if v := os.Getenv("PARLEY_HTTP_AUTH_TOKEN"); v != "" {
		cfg.HTTP.AuthToken = v
	}
	if v := os.Getenv("PARLEY_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PARLEY_NATS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = n
		}
	}
	if v := os.Getenv("PARLEY_TEMPORAL_HOSTPORT"); v != "" {
		cfg.Temporal.HostPort = v
	}
	if v := os.Getenv("PARLEY_TEMPORAL_NAMESPACE"); v != "" {
		cfg.Temporal.Namespace = v
	}
	if v := os.Getenv("PARLEY_TASK_QUEUE"); v != "" {
		cfg.Temporal.TaskQueue = v
	}
	if v := os.Getenv("PARLEY_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("PARLEY_AGENTS_MANIFEST"); v != "" {
		cfg.Agents.ManifestPath = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate checks the values the daemon cannot run without.
func (c *Config) Validate() error {
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return &ValidationError{Field: "http.port", Reason: fmt.Sprintf("port %d out of range", c.HTTP.Port)}
	}
	return nil
}

func (o *OrchestratorConfig) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return &ValidationError{Field: "orchestrator.name", Reason: "name is required"}
	}
	switch o.Strategy {
	case StrategyRandom, StrategyRoundRobin:
	default:
		return &ValidationError{Field: "orchestrator.strategy", Reason: fmt.Sprintf("unknown strategy %q", o.Strategy)}
	}
	if o.MaxIterations < 1 {
		return &ValidationError{Field: "orchestrator.max_iterations", Reason: "must be at least 1"}
	}
	if o.TimeoutSeconds < 1 {
		return &ValidationError{Field: "orchestrator.timeout", Reason: "must be at least 1 second"}
	}
	if o.CurrentAgentIndex < 0 {
		return &ValidationError{Field: "orchestrator.current_agent_index", Reason: "must not be negative"}
	}
	return nil
}

// BroadcastTopic returns the configured broadcast topic, defaulting to the
// orchestrator's own name.
func (o *OrchestratorConfig) BroadcastTopic() string {
	if o.BroadcastTopicName != "" {
		return o.BroadcastTopicName
	}
	return o.Name
}
