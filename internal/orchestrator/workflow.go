package orchestrator

import (
	"time"

	"parley/internal/message"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	OrchestrationWorkflowName = "OrchestrationWorkflow"

	AgentResponseSignalName = "AgentTaskResponse"
	StateQueryName          = "orchestration.state"

	DefaultMaxIterations      = 10
	DefaultTurnTimeoutSeconds = 300

	DefaultActivityTimeout       = 30 * time.Second
	DefaultActivityRetryAttempts = 5

	// NoAgentsAvailableMessage ends a round robin run that found an empty
	// registry at startup.
	NoAgentsAvailableMessage = "No agents available for orchestration."
)

// WorkflowInput starts one orchestration run: the task text plus the
// settings the loop needs.
type WorkflowInput struct {
	Task   string
	Config OrchestrationConfig
}

// OrchestrationConfig is the workflow-visible slice of the coordinator
// configuration. CurrentSpeaker and CurrentAgentIndex seed the selection
// strategies; zero values mean a fresh start.
type OrchestrationConfig struct {
	Name              string
	Strategy          Strategy
	MaxIterations     int
	TimeoutSeconds    int
	CurrentSpeaker    string
	CurrentAgentIndex int
}

// OrchestratorState threads the loop state through one workflow execution
// and doubles as the query result. Each execution owns its copy.
type OrchestratorState struct {
	Task              string
	Turn              int
	MaxIterations     int
	TimeoutSeconds    int
	Strategy          Strategy
	CurrentSpeaker    string
	CurrentAgentIndex int
	AgentNames        []string
	Output            string
}

func newOrchestratorState(input WorkflowInput) OrchestratorState {
	state := OrchestratorState{
		Task:              input.Task,
		MaxIterations:     input.Config.MaxIterations,
		TimeoutSeconds:    input.Config.TimeoutSeconds,
		Strategy:          input.Config.Strategy,
		CurrentSpeaker:    input.Config.CurrentSpeaker,
		CurrentAgentIndex: input.Config.CurrentAgentIndex,
	}
	if state.MaxIterations < 1 {
		state.MaxIterations = DefaultMaxIterations
	}
	if state.TimeoutSeconds < 1 {
		state.TimeoutSeconds = DefaultTurnTimeoutSeconds
	}
	if state.Strategy == "" {
		state.Strategy = StrategyRoundRobin
	}
	return state
}

func (s *OrchestratorState) turnTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// OrchestrationWorkflow runs the turn loop for one task. The task is
// broadcast once on the first turn; each turn selects a speaker, triggers
// it, and waits for a response or the turn timeout. Responses are not fed
// into later turns; agents re-derive context from the broadcast. The
// content of the final turn is the run output.
func OrchestrationWorkflow(workflowContext workflow.Context, input WorkflowInput) (string, error) {
	logger := workflow.GetLogger(workflowContext)
	instanceID := workflow.GetInfo(workflowContext).WorkflowExecution.ID

	state := newOrchestratorState(input)
	queryError := workflow.SetQueryHandler(workflowContext, StateQueryName, func() (OrchestratorState, error) {
		return state, nil
	})
	if queryError != nil {
		return "", queryError
	}

	activityContext := workflow.WithActivityOptions(workflowContext, workflow.ActivityOptions{
		StartToCloseTimeout: DefaultActivityTimeout,
		RetryPolicy:         defaultActivityRetryPolicy(),
	})

	if state.Strategy == StrategyRoundRobin {
		agents, listErr := listAgents(activityContext)
		if listErr != nil {
			return "", listErr
		}
		if len(agents) == 0 {
			logger.Info("no agents registered, ending run", "instance_id", instanceID)
			return NoAgentsAvailableMessage, nil
		}
		state.AgentNames = sortedAgentNames(agents)
		if state.CurrentAgentIndex < 0 || state.CurrentAgentIndex >= len(state.AgentNames) {
			state.CurrentAgentIndex = 0
		}
	}

	responses := workflow.GetSignalChannel(workflowContext, AgentResponseSignalName)

	for state.Turn = 1; state.Turn <= state.MaxIterations; state.Turn++ {
		if state.Turn == 1 {
			broadcast := message.BroadcastMessage{
				Role:    message.RoleUser,
				Content: input.Task,
				Name:    input.Config.Name,
			}
			if activityErr := workflow.ExecuteActivity(activityContext, BroadcastMessageActivityName, broadcast).Get(activityContext, nil); activityErr != nil {
				return "", activityErr
			}
		}

		speaker, selectErr := nextSpeaker(activityContext, &state)
		if selectErr != nil {
			return "", selectErr
		}
		logger.Info("speaker selected", "turn", state.Turn, "speaker", speaker)

		trigger := TriggerRequest{AgentName: speaker, WorkflowInstanceID: instanceID}
		if activityErr := workflow.ExecuteActivity(activityContext, TriggerAgentActivityName, trigger).Get(activityContext, nil); activityErr != nil {
			return "", activityErr
		}

		result := awaitTurnResponse(workflowContext, responses, state.turnTimeout())
		if result.TimedOut {
			logger.Warn("turn timed out", "turn", state.Turn, "speaker", speaker)
		}
		state.Output = result.Response.Content

		outcome := TurnOutcome{
			InstanceID: instanceID,
			Turn:       state.Turn,
			Speaker:    result.Response.Name,
			Content:    result.Response.Content,
			TimedOut:   result.TimedOut,
			Strategy:   string(state.Strategy),
		}
		if activityErr := workflow.ExecuteActivity(activityContext, RecordTurnActivityName, outcome).Get(activityContext, nil); activityErr != nil {
			logger.Warn("record turn activity failed", "turn", state.Turn, "error", activityErr)
		}
	}

	logger.Info("run completed", "instance_id", instanceID, "turns", state.MaxIterations)
	return state.Output, nil
}

func listAgents(workflowContext workflow.Context) (map[string]AgentInfo, error) {
	var agents map[string]AgentInfo
	if activityErr := workflow.ExecuteActivity(workflowContext, ListAgentsActivityName).Get(workflowContext, &agents); activityErr != nil {
		return nil, activityErr
	}
	return agents, nil
}

func defaultActivityRetryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    DefaultActivityRetryAttempts,
	}
}
