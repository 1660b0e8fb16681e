package orchestrator

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Strategy tags a speaker selection policy. New strategies add a tag here
// and a case in nextSpeaker; callers never branch on concrete behavior.
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "roundrobin"
)

func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "random":
		return StrategyRandom, nil
	case "roundrobin", "round-robin", "round_robin":
		return StrategyRoundRobin, nil
	default:
		return "", fmt.Errorf("unknown selection strategy %q", value)
	}
}

func nextSpeaker(workflowContext workflow.Context, state *OrchestratorState) (string, error) {
	switch state.Strategy {
	case StrategyRandom:
		return nextRandomSpeaker(workflowContext, state)
	case StrategyRoundRobin:
		return nextRoundRobinSpeaker(state)
	default:
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown selection strategy %q", state.Strategy), UnknownStrategyErrorType, nil)
	}
}

// nextRandomSpeaker re-reads the registry each turn so agents that join or
// leave mid-run are picked up. The draw itself runs inside a side effect and
// is recorded in history, so replays reuse the original pick.
func nextRandomSpeaker(workflowContext workflow.Context, state *OrchestratorState) (string, error) {
	agents, listErr := listAgents(workflowContext)
	if listErr != nil {
		return "", listErr
	}
	candidates := randomCandidates(sortedAgentNames(agents), state.CurrentSpeaker)
	if len(candidates) == 0 {
		return "", temporal.NewNonRetryableApplicationError(
			"no agents available for selection", EmptyRegistryErrorType, nil)
	}

	var pick string
	drawn := workflow.SideEffect(workflowContext, func(workflow.Context) interface{} {
		return candidates[rand.Intn(len(candidates))]
	})
	if decodeErr := drawn.Get(&pick); decodeErr != nil {
		return "", decodeErr
	}
	state.CurrentSpeaker = pick
	return pick, nil
}

// randomCandidates drops the previous speaker whenever at least one other
// agent exists; an agent only follows itself when it is the sole candidate.
func randomCandidates(names []string, previous string) []string {
	if previous == "" || len(names) <= 1 {
		return names
	}
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if name != previous {
			filtered = append(filtered, name)
		}
	}
	if len(filtered) == 0 {
		return names
	}
	return filtered
}

// nextRoundRobinSpeaker walks the roster captured at workflow start. An
// out-of-range seed index restarts at the top of the roster.
func nextRoundRobinSpeaker(state *OrchestratorState) (string, error) {
	if len(state.AgentNames) == 0 {
		return "", temporal.NewNonRetryableApplicationError(
			"no agents available for selection", EmptyRegistryErrorType, nil)
	}
	if state.CurrentAgentIndex < 0 || state.CurrentAgentIndex >= len(state.AgentNames) {
		state.CurrentAgentIndex = 0
	}
	speaker := state.AgentNames[state.CurrentAgentIndex]
	state.CurrentAgentIndex = (state.CurrentAgentIndex + 1) % len(state.AgentNames)
	state.CurrentSpeaker = speaker
	return speaker, nil
}

// sortedAgentNames fixes the roster order. Registry reads return maps;
// sorting keeps selection deterministic across replays.
func sortedAgentNames(agents map[string]AgentInfo) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
