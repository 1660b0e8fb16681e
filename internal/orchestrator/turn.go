package orchestrator

import (
	"time"

	"parley/internal/message"

	"go.temporal.io/sdk/workflow"
)

const (
	// TimeoutSpeakerName marks a turn nobody answered in time.
	TimeoutSpeakerName = "timeout"

	timeoutSentinelContent = "Timeout occurred. Continuing with the next turn."
)

// TurnResult is the outcome of one response-versus-timer race.
type TurnResult struct {
	Response message.AgentTaskResponse
	TimedOut bool
}

// awaitTurnResponse blocks until an agent response signal arrives or the
// turn timer fires, whichever is first. The losing branch is abandoned; a
// response that arrives after the timer stays queued on the signal channel
// and satisfies a later turn's wait.
func awaitTurnResponse(workflowContext workflow.Context, responses workflow.ReceiveChannel, timeout time.Duration) TurnResult {
	timerContext, cancelTimer := workflow.WithCancel(workflowContext)
	timer := workflow.NewTimer(timerContext, timeout)

	var result TurnResult
	selector := workflow.NewSelector(workflowContext)
	selector.AddReceive(responses, func(channel workflow.ReceiveChannel, more bool) {
		channel.Receive(workflowContext, &result.Response)
		cancelTimer()
	})
	selector.AddFuture(timer, func(workflow.Future) {
		result = timeoutResult()
	})
	selector.Select(workflowContext)
	return result
}

func timeoutResult() TurnResult {
	return TurnResult{
		Response: message.AgentTaskResponse{
			Name:    TimeoutSpeakerName,
			Content: timeoutSentinelContent,
		},
		TimedOut: true,
	}
}
