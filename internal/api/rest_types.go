package api

import (
	"context"
	"time"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/registry"
	"parley/internal/store"
	"parley/internal/temporal"
)

// Coordinator is the slice of the orchestrator service the HTTP surface
// depends on.
type Coordinator interface {
	StartRun(ctx context.Context, task string) (string, error)
	OrchestratorConfig() config.OrchestratorConfig
}

type RestHandler struct {
	Coordinator Coordinator
	Store       *store.Store
	Registry    *registry.Client
	Temporal    temporal.WorkflowClient
	Logger      *logging.Logger
	Metrics     *metrics.Registry
	StartedAt   time.Time
}

type statusResponse struct {
	Name          string    `json:"name"`
	Strategy      string    `json:"strategy"`
	MaxIterations int       `json:"max_iterations"`
	TimeoutSecs   int       `json:"timeout_seconds"`
	AgentCount    int       `json:"agent_count"`
	ServerTime    time.Time `json:"server_time"`
	UptimeSecs    int64     `json:"uptime_seconds"`
	Version       string    `json:"version"`
	Major         int       `json:"major"`
	Minor         int       `json:"minor"`
	Patch         int       `json:"patch"`
	Built         string    `json:"built"`
	GitCommit     string    `json:"git_commit,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

type createRunRequest struct {
	Task string `json:"task"`
}

type runStartedResponse struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}

// runStateView mirrors the workflow's queryable loop state for runs that
// are still executing.
type runStateView struct {
	Turn              int      `json:"turn"`
	MaxIterations     int      `json:"max_iterations"`
	TimeoutSecs       int      `json:"timeout_seconds"`
	Strategy          string   `json:"strategy"`
	CurrentSpeaker    string   `json:"current_speaker,omitempty"`
	CurrentAgentIndex int      `json:"current_agent_index"`
	AgentNames        []string `json:"agent_names,omitempty"`
}

type runDetailResponse struct {
	Run      *store.Run           `json:"run"`
	Turns    []store.Turn         `json:"turns"`
	Messages []store.AgentMessage `json:"messages"`
	Live     *runStateView        `json:"live,omitempty"`
}

type registerAgentRequest struct {
	Name     string            `json:"name"`
	Topic    string            `json:"topic,omitempty"`
	Pubsub   string            `json:"pubsub,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type logQuery struct {
	Limit int
	Level logging.Level
	Since *time.Time
}

type clientLogRequest struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Context map[string]string `json:"context"`
}
