// Package message defines the wire contracts exchanged between the
// coordinator and agents over the bus. All payloads are JSON.
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author class of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Bus header names. Header maps are indexed with these exact keys on both
// sides; going through textproto-style Set/Get would canonicalize them.
const (
	HeaderSender             = "sender"
	HeaderTargetAgent        = "targetAgent"
	HeaderWorkflowInstanceID = "workflowInstanceId"
	HeaderBroadcast          = "broadcast"
)

// TriggerAction asks an agent to take its turn. Task is only present on
// broadcasts that carry work; per-turn re-triggers omit it.
type TriggerAction struct {
	Task               *string `json:"task,omitempty"`
	WorkflowInstanceID string  `json:"workflowInstanceId,omitempty"`
}

// BroadcastMessage carries the shared task to every agent at the start of a
// run. Timestamp is stamped by the publisher.
type BroadcastMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Name      string     `json:"name,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (m BroadcastMessage) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("broadcast role %q is not one of user, assistant, tool", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("broadcast content is empty")
	}
	return nil
}

// AgentTaskResponse is an agent's answer for one turn, correlated to a run
// by WorkflowInstanceID.
type AgentTaskResponse struct {
	Role               Role   `json:"role"`
	Content            string `json:"content"`
	Name               string `json:"name,omitempty"`
	WorkflowInstanceID string `json:"workflowInstanceId,omitempty"`
}

func (m AgentTaskResponse) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("response role %q is not one of user, assistant, tool", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("response content is empty")
	}
	return nil
}

// DecodeAgentTaskResponse unmarshals and validates a bus payload.
func DecodeAgentTaskResponse(data []byte) (AgentTaskResponse, error) {
	var response AgentTaskResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return AgentTaskResponse{}, fmt.Errorf("decode agent response: %w", err)
	}
	if err := response.Validate(); err != nil {
		return AgentTaskResponse{}, err
	}
	return response, nil
}

// DecodeTriggerAction unmarshals a trigger payload. An empty body is a valid
// trigger with no task.
func DecodeTriggerAction(data []byte) (TriggerAction, error) {
	var action TriggerAction
	if len(data) == 0 {
		return action, nil
	}
	if err := json.Unmarshal(data, &action); err != nil {
		return TriggerAction{}, fmt.Errorf("decode trigger action: %w", err)
	}
	return action, nil
}
