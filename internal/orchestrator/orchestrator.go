// Package orchestrator coordinates turn-based collaborations between
// registered agents. A Temporal workflow owns the turn loop; the
// Coordinator supplies its activities, publishes to the message bus, and
// ingests agent responses as workflow signals.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parley/internal/config"
	"parley/internal/event"
	"parley/internal/logging"
	"parley/internal/message"
	"parley/internal/metrics"
	"parley/internal/natsbus"
	"parley/internal/registry"
	"parley/internal/store"
	"parley/internal/temporal"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"
)

const (
	DefaultTaskQueue = "parley-orchestration"

	workflowIDPrefix = "parley-run-"
)

// Orchestrator is the coordination surface: the workflow body plus the
// three service operations it schedules work through.
type Orchestrator interface {
	MainWorkflow(workflowContext workflow.Context, input WorkflowInput) (string, error)
	ProcessAgentResponse(ctx context.Context, response message.AgentTaskResponse) error
	BroadcastMessageToAgents(ctx context.Context, broadcast message.BroadcastMessage) error
	TriggerAgent(ctx context.Context, name, workflowInstanceID string) error
}

// Bus is the publish surface the coordinator needs. *natsbus.Client
// satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, headers map[string]string) error
	PublishRequest(topic, reply string, payload []byte, headers map[string]string) error
}

type Coordinator struct {
	cfg       config.OrchestratorConfig
	strategy  Strategy
	taskQueue string
	dataDir   string

	registry *registry.Client
	bus      Bus
	temporal temporal.WorkflowClient
	store    *store.Store

	logger  *logging.Logger
	metrics *metrics.Registry
	events  *event.Bus[event.Event]
}

type CoordinatorOptions struct {
	Config    config.OrchestratorConfig
	TaskQueue string
	DataDir   string

	Registry *registry.Client
	Bus      Bus
	Temporal temporal.WorkflowClient
	Store    *store.Store

	Logger  *logging.Logger
	Metrics *metrics.Registry
	Events  *event.Bus[event.Event]
}

// NewCoordinator validates the orchestration config and wires the
// coordinator. Store is optional; without it runs still execute but leave
// no history behind.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(opts.Config.Strategy)
	if err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Bus == nil {
		return nil, errors.New("bus is required")
	}
	if opts.Temporal == nil {
		return nil, errors.New("temporal client is required")
	}
	if opts.TaskQueue == "" {
		opts.TaskQueue = DefaultTaskQueue
	}
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default
	}

	return &Coordinator{
		cfg:       opts.Config,
		strategy:  strategy,
		taskQueue: opts.TaskQueue,
		dataDir:   opts.DataDir,
		registry:  opts.Registry,
		bus:       opts.Bus,
		temporal:  opts.Temporal,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		events:    opts.Events,
	}, nil
}

var _ Orchestrator = (*Coordinator)(nil)

// MainWorkflow is the registered workflow body. It lives on the package
// function so the worker can register it without a coordinator instance.
func (c *Coordinator) MainWorkflow(workflowContext workflow.Context, input WorkflowInput) (string, error) {
	return OrchestrationWorkflow(workflowContext, input)
}

func (c *Coordinator) Name() string {
	return c.cfg.Name
}

func (c *Coordinator) Strategy() Strategy {
	return c.strategy
}

func (c *Coordinator) OrchestratorConfig() config.OrchestratorConfig {
	return c.cfg
}

// InboxTopic is where agents answer. Triggers carry it as the reply
// subject, and the coordinator's own bus subscription listens on it.
func (c *Coordinator) InboxTopic() string {
	return c.cfg.BroadcastTopic()
}

// Start announces the coordinator in the shared registry so agents can
// discover the reply topic and other orchestrators can exclude it.
func (c *Coordinator) Start(ctx context.Context) error {
	return c.registry.RegisterSelf(ctx, c.InboxTopic(), c.cfg.MessageBusName)
}

// Stop withdraws the registry record written by Start.
func (c *Coordinator) Stop(ctx context.Context) error {
	return c.registry.Deregister(ctx, c.cfg.Name)
}

// Run starts an orchestration and blocks until it finishes, returning the
// content of the final turn.
func (c *Coordinator) Run(ctx context.Context, task string) (string, error) {
	instanceID, run, err := c.startWorkflow(ctx, task)
	if err != nil {
		return "", err
	}

	var output string
	if err := run.Get(ctx, &output); err != nil {
		c.finishFailed(instanceID, err)
		return "", fmt.Errorf("run %s: %w", instanceID, err)
	}
	c.finishCompleted(instanceID, output)
	return output, nil
}

// StartRun starts an orchestration and returns its instance ID without
// waiting. Completion is awaited in the background so the run record and
// metrics still settle.
func (c *Coordinator) StartRun(ctx context.Context, task string) (string, error) {
	instanceID, run, err := c.startWorkflow(ctx, task)
	if err != nil {
		return "", err
	}

	go func() {
		var output string
		if err := run.Get(context.Background(), &output); err != nil {
			c.finishFailed(instanceID, err)
			return
		}
		c.finishCompleted(instanceID, output)
	}()
	return instanceID, nil
}

func (c *Coordinator) startWorkflow(ctx context.Context, task string) (string, client.WorkflowRun, error) {
	if strings.TrimSpace(task) == "" {
		return "", nil, errors.New("task is required")
	}

	instanceID := workflowIDPrefix + uuid.NewString()
	input := WorkflowInput{
		Task: task,
		Config: OrchestrationConfig{
			Name:              c.cfg.Name,
			Strategy:          c.strategy,
			MaxIterations:     c.cfg.MaxIterations,
			TimeoutSeconds:    c.cfg.TimeoutSeconds,
			CurrentSpeaker:    c.cfg.CurrentSpeaker,
			CurrentAgentIndex: c.cfg.CurrentAgentIndex,
		},
	}
	options := client.StartWorkflowOptions{
		ID:        instanceID,
		TaskQueue: c.taskQueue,
		Memo:      temporal.RunMemo(task, string(c.strategy)),
	}

	run, err := c.temporal.ExecuteWorkflow(ctx, options, OrchestrationWorkflowName, input)
	if err != nil {
		return "", nil, fmt.Errorf("start run: %w", err)
	}

	if c.store != nil {
		if storeErr := c.store.CreateRun(instanceID, task, string(c.strategy)); storeErr != nil {
			c.logWarn("run record create failed", map[string]string{
				"instance_id": instanceID,
				"error":       storeErr.Error(),
			})
		}
	}
	c.metrics.IncRunStarted()
	c.events.Publish(event.NewRunEvent("run_started", instanceID, task, ""))
	c.logInfo("run started", map[string]string{
		"instance_id": instanceID,
		"strategy":    string(c.strategy),
	})
	return instanceID, run, nil
}

func (c *Coordinator) finishCompleted(instanceID, output string) {
	if c.store != nil {
		if err := c.store.CompleteRun(instanceID, output); err != nil {
			c.logWarn("run record complete failed", map[string]string{
				"instance_id": instanceID,
				"error":       err.Error(),
			})
		}
	}
	c.metrics.IncRunCompleted()
	c.events.Publish(event.NewRunEvent("run_completed", instanceID, "", output))
	c.logInfo("run completed", map[string]string{"instance_id": instanceID})
}

func (c *Coordinator) finishFailed(instanceID string, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if c.store != nil {
		if err := c.store.FailRun(instanceID, reason); err != nil {
			c.logWarn("run record fail failed", map[string]string{
				"instance_id": instanceID,
				"error":       err.Error(),
			})
		}
	}
	c.metrics.IncRunFailed()
	c.events.Publish(event.NewRunEvent("run_failed", instanceID, "", reason))
	c.logWarn("run failed", map[string]string{
		"instance_id": instanceID,
		"error":       reason,
	})
}

// HandleResponsePayload ingests one raw bus payload from the inbox
// subscription: decode, observe, then signal the owning workflow.
// Malformed payloads are dropped with a log line.
func (c *Coordinator) HandleResponsePayload(ctx context.Context, payload []byte) {
	response, err := message.DecodeAgentTaskResponse(payload)
	if err != nil {
		c.metrics.IncResponseDiscarded()
		c.logWarn("agent response dropped", map[string]string{"error": err.Error()})
		return
	}
	if err := c.ProcessAgentResponse(ctx, response); err != nil {
		c.logWarn("agent response processing failed", map[string]string{
			"agent": response.Name,
			"error": err.Error(),
		})
	}
	c.deliverResponse(ctx, response)
}

// ProcessAgentResponse is the observation hook for incoming responses: it
// logs and persists the message. Delivery to the workflow happens
// separately and never depends on this succeeding.
func (c *Coordinator) ProcessAgentResponse(ctx context.Context, response message.AgentTaskResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.metrics.IncResponseIngested()
	c.events.Publish(event.NewResponseEvent("response_received", response.WorkflowInstanceID, response.Name))
	c.logInfo("agent response received", map[string]string{
		"agent":       response.Name,
		"instance_id": response.WorkflowInstanceID,
	})
	if c.store == nil {
		return nil
	}
	if err := c.store.AppendMessage(response.WorkflowInstanceID, string(response.Role), response.Name, response.Content); err != nil {
		return fmt.Errorf("process agent response: %w", err)
	}
	return nil
}

func (c *Coordinator) deliverResponse(ctx context.Context, response message.AgentTaskResponse) {
	if response.WorkflowInstanceID == "" {
		c.metrics.IncResponseDiscarded()
		c.logWarn("agent response missing instance id", map[string]string{"agent": response.Name})
		return
	}

	err := c.temporal.SignalWorkflow(ctx, response.WorkflowInstanceID, "", AgentResponseSignalName, response)
	if err == nil {
		return
	}
	c.metrics.IncResponseDiscarded()
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		// The run already finished; late responses are expected after a
		// timeout turn.
		c.logInfo("agent response after run end", map[string]string{
			"agent":       response.Name,
			"instance_id": response.WorkflowInstanceID,
		})
		return
	}
	c.logWarn("agent response signal failed", map[string]string{
		"agent":       response.Name,
		"instance_id": response.WorkflowInstanceID,
		"error":       err.Error(),
	})
}

// SpeakerCandidates returns the agents eligible to take a turn, excluding
// the coordinator itself and any other orchestrators sharing the registry.
func (c *Coordinator) SpeakerCandidates(ctx context.Context) (map[string]AgentInfo, error) {
	records, err := c.registry.GetAgents(ctx, registry.GetAgentsOptions{
		ExcludeSelf:          true,
		ExcludeOrchestrators: true,
	})
	if err != nil {
		return nil, err
	}
	agents := make(map[string]AgentInfo, len(records))
	for name, record := range records {
		agents[name] = AgentInfo{
			Name:   record.Name,
			Topic:  record.Topic,
			Pubsub: record.Pubsub,
		}
	}
	return agents, nil
}

// BroadcastMessageToAgents publishes the message to every eligible agent's
// trigger topic. Per-agent publish failures are logged and skipped; the
// broadcast itself only fails when the registry is unreachable.
func (c *Coordinator) BroadcastMessageToAgents(ctx context.Context, broadcast message.BroadcastMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	agents, err := c.SpeakerCandidates(ctx)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	if broadcast.Name == "" {
		broadcast.Name = c.cfg.Name
	}
	if broadcast.Timestamp == nil {
		now := time.Now().UTC()
		broadcast.Timestamp = &now
	}
	payload, err := json.Marshal(broadcast)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	headers := map[string]string{
		message.HeaderSender:    c.cfg.Name,
		message.HeaderBroadcast: "true",
	}

	var failed []string
	for _, name := range sortedAgentNames(agents) {
		topic := natsbus.TriggerTopic(name, agents[name].Topic)
		if publishErr := c.bus.Publish(topic, payload, headers); publishErr != nil {
			c.metrics.IncBroadcastFailure()
			failed = append(failed, name)
			c.logWarn("broadcast publish failed", map[string]string{
				"agent": name,
				"topic": topic,
				"error": publishErr.Error(),
			})
			continue
		}
		c.metrics.IncBroadcastPublish()
	}

	c.events.Publish(event.NewBroadcastEvent("", len(agents), failed))
	c.logInfo("task broadcast", map[string]string{
		"recipients": fmt.Sprintf("%d", len(agents)-len(failed)),
		"failed":     fmt.Sprintf("%d", len(failed)),
	})
	return nil
}

// TriggerAgent hands the current turn to one agent. The trigger carries the
// workflow instance ID in both body and headers, and the coordinator inbox
// as the reply subject. An unregistered agent is ErrAgentNotFound.
func (c *Coordinator) TriggerAgent(ctx context.Context, name, workflowInstanceID string) error {
	record, err := c.registry.Lookup(ctx, name)
	if err != nil {
		return fmt.Errorf("trigger agent %s: %w", name, err)
	}
	if record == nil {
		return fmt.Errorf("trigger agent %s: %w", name, ErrAgentNotFound)
	}

	action := message.TriggerAction{WorkflowInstanceID: workflowInstanceID}
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("trigger agent %s: %w", name, err)
	}
	headers := map[string]string{
		message.HeaderSender:             c.cfg.Name,
		message.HeaderTargetAgent:        name,
		message.HeaderWorkflowInstanceID: workflowInstanceID,
	}

	topic := natsbus.TriggerTopic(name, record.Topic)
	if err := c.bus.PublishRequest(topic, c.InboxTopic(), payload, headers); err != nil {
		return fmt.Errorf("trigger agent %s: %w", name, err)
	}
	c.metrics.IncTriggerSent()
	c.events.Publish(event.NewSelectionEvent(workflowInstanceID, string(c.strategy), name))
	c.logInfo("agent triggered", map[string]string{
		"agent":       name,
		"topic":       topic,
		"instance_id": workflowInstanceID,
	})
	return nil
}

// recordTurn persists one settled turn and emits its observability. Failures
// here are reported to the workflow, which logs and keeps going.
func (c *Coordinator) recordTurn(ctx context.Context, outcome TurnOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.metrics.IncTurnExecuted()
	if outcome.TimedOut {
		c.metrics.IncTurnTimeout()
	}
	c.metrics.IncSelection(outcome.Strategy)
	c.events.Publish(event.NewTurnEvent(outcome.InstanceID, outcome.Turn, outcome.Speaker, outcome.TimedOut))
	c.logInfo("turn recorded", map[string]string{
		"instance_id": outcome.InstanceID,
		"turn":        fmt.Sprintf("%d", outcome.Turn),
		"speaker":     outcome.Speaker,
	})

	if c.store == nil {
		return nil
	}
	turn := store.Turn{
		InstanceID: outcome.InstanceID,
		Turn:       outcome.Turn,
		Speaker:    outcome.Speaker,
		Content:    outcome.Content,
		TimedOut:   outcome.TimedOut,
	}
	if err := c.store.SaveTurn(turn); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	if c.cfg.SaveStateLocally {
		if err := c.writeLocalSnapshot(outcome.InstanceID); err != nil {
			c.logWarn("state snapshot failed", map[string]string{
				"instance_id": outcome.InstanceID,
				"error":       err.Error(),
			})
		}
	}
	return nil
}

// writeLocalSnapshot mirrors a run's turn history to a JSON file under the
// data dir, keyed by the configured state key.
func (c *Coordinator) writeLocalSnapshot(instanceID string) error {
	run, err := c.store.GetRun(instanceID)
	if err != nil {
		if !errors.Is(err, store.ErrRunNotFound) {
			return err
		}
		run = &store.Run{InstanceID: instanceID}
	}
	turns, err := c.store.ListTurns(instanceID)
	if err != nil {
		return err
	}

	snapshot := struct {
		Run   *store.Run   `json:"run"`
		Turns []store.Turn `json:"turns"`
	}{Run: run, Turns: turns}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Join(c.dataDir, "state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.json", c.cfg.StateKey, instanceID)
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func (c *Coordinator) logInfo(msg string, fields map[string]string) {
	if c.logger != nil {
		c.logger.Info(msg, fields)
	}
}

func (c *Coordinator) logWarn(msg string, fields map[string]string) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}
