package orchestrator

import (
	"context"
	"errors"
	"time"

	"parley/internal/message"
	"parley/internal/metrics"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

const (
	ListAgentsActivityName       = "ListAgentsActivity"
	BroadcastMessageActivityName = "BroadcastMessageActivity"
	TriggerAgentActivityName     = "TriggerAgentActivity"
	RecordTurnActivityName       = "RecordTurnActivity"
)

// AgentInfo is the registry view that crosses the activity boundary into
// workflow history. Registry records carry more; the loop only needs this.
type AgentInfo struct {
	Name   string
	Topic  string
	Pubsub string
}

// TriggerRequest asks the trigger activity to hand the turn to one agent.
type TriggerRequest struct {
	AgentName          string
	WorkflowInstanceID string
}

// TurnOutcome is what the workflow reports after each turn settles.
type TurnOutcome struct {
	InstanceID string
	Turn       int
	Speaker    string
	Content    string
	TimedOut   bool
	Strategy   string
}

// Activities exposes the coordinator's bus and registry operations to
// workflows. Methods are registered under their own names so workflows can
// schedule them as strings.
type Activities struct {
	coordinator *Coordinator
}

func NewActivities(coordinator *Coordinator) *Activities {
	return &Activities{coordinator: coordinator}
}

func (a *Activities) ListAgentsActivity(activityContext context.Context) (agents map[string]AgentInfo, activityErr error) {
	start := time.Now()
	attempt := activityAttempt(activityContext)
	defer func() {
		metrics.Default.RecordActivity(ListAgentsActivityName, time.Since(start), activityErr, attempt)
	}()

	if activityContext != nil {
		if contextError := activityContext.Err(); contextError != nil {
			activityErr = contextError
			return nil, contextError
		}
	}
	coordinator, coordinatorErr := a.ensureCoordinator()
	if coordinatorErr != nil {
		activityErr = coordinatorErr
		return nil, coordinatorErr
	}

	agents, activityErr = coordinator.SpeakerCandidates(activityContext)
	return agents, activityErr
}

func (a *Activities) BroadcastMessageActivity(activityContext context.Context, broadcast message.BroadcastMessage) (activityErr error) {
	start := time.Now()
	attempt := activityAttempt(activityContext)
	defer func() {
		metrics.Default.RecordActivity(BroadcastMessageActivityName, time.Since(start), activityErr, attempt)
	}()

	if activityContext != nil {
		if contextError := activityContext.Err(); contextError != nil {
			activityErr = contextError
			return contextError
		}
	}
	coordinator, coordinatorErr := a.ensureCoordinator()
	if coordinatorErr != nil {
		activityErr = coordinatorErr
		return coordinatorErr
	}

	activityErr = coordinator.BroadcastMessageToAgents(activityContext, broadcast)
	return activityErr
}

func (a *Activities) TriggerAgentActivity(activityContext context.Context, request TriggerRequest) (activityErr error) {
	start := time.Now()
	attempt := activityAttempt(activityContext)
	defer func() {
		metrics.Default.RecordActivity(TriggerAgentActivityName, time.Since(start), activityErr, attempt)
	}()

	if activityContext != nil {
		if contextError := activityContext.Err(); contextError != nil {
			activityErr = contextError
			return contextError
		}
	}
	coordinator, coordinatorErr := a.ensureCoordinator()
	if coordinatorErr != nil {
		activityErr = coordinatorErr
		return coordinatorErr
	}

	triggerErr := coordinator.TriggerAgent(activityContext, request.AgentName, request.WorkflowInstanceID)
	if errors.Is(triggerErr, ErrAgentNotFound) {
		activityErr = temporal.NewNonRetryableApplicationError(triggerErr.Error(), AgentNotFoundErrorType, triggerErr)
		return activityErr
	}
	activityErr = triggerErr
	return activityErr
}

func (a *Activities) RecordTurnActivity(activityContext context.Context, outcome TurnOutcome) (activityErr error) {
	start := time.Now()
	attempt := activityAttempt(activityContext)
	defer func() {
		metrics.Default.RecordActivity(RecordTurnActivityName, time.Since(start), activityErr, attempt)
	}()

	if activityContext != nil {
		if contextError := activityContext.Err(); contextError != nil {
			activityErr = contextError
			return contextError
		}
	}
	coordinator, coordinatorErr := a.ensureCoordinator()
	if coordinatorErr != nil {
		activityErr = coordinatorErr
		return coordinatorErr
	}

	activityErr = coordinator.recordTurn(activityContext, outcome)
	return activityErr
}

func (a *Activities) ensureCoordinator() (*Coordinator, error) {
	if a == nil || a.coordinator == nil {
		return nil, errors.New("coordinator unavailable")
	}
	return a.coordinator, nil
}

func activityAttempt(activityContext context.Context) int32 {
	if activityContext == nil || !activity.IsActivity(activityContext) {
		return 1
	}
	return activity.GetInfo(activityContext).Attempt
}
