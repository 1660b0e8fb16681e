package orchestrator

import "errors"

// ErrAgentNotFound reports a trigger aimed at an agent with no registry
// record. Workflows see it as a non-retryable application error and abort
// the run.
var ErrAgentNotFound = errors.New("agent not found in registry")

// Application error types carried across the activity boundary.
const (
	AgentNotFoundErrorType   = "AgentNotFoundError"
	EmptyRegistryErrorType   = "EmptyRegistryError"
	UnknownStrategyErrorType = "UnknownStrategyError"
)
