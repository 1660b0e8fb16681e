package event

import "time"

// Event represents a typed event with an occurrence timestamp.
type Event interface {
	Type() string
	Timestamp() time.Time
}

// RunEvent captures orchestration run lifecycle changes.
type RunEvent struct {
	EventType  string
	InstanceID string
	Task       string
	Detail     string
	OccurredAt time.Time
}

func NewRunEvent(eventType, instanceID, task, detail string) RunEvent {
	return RunEvent{
		EventType:  eventType,
		InstanceID: instanceID,
		Task:       task,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
}

func (e RunEvent) Type() string {
	return e.EventType
}

func (e RunEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// TurnEvent captures the outcome of a single turn.
type TurnEvent struct {
	EventType  string
	InstanceID string
	Turn       int
	Speaker    string
	TimedOut   bool
	OccurredAt time.Time
}

func NewTurnEvent(instanceID string, turn int, speaker string, timedOut bool) TurnEvent {
	eventType := "turn_completed"
	if timedOut {
		eventType = "turn_timeout"
	}
	return TurnEvent{
		EventType:  eventType,
		InstanceID: instanceID,
		Turn:       turn,
		Speaker:    speaker,
		TimedOut:   timedOut,
		OccurredAt: time.Now().UTC(),
	}
}

func (e TurnEvent) Type() string {
	return e.EventType
}

func (e TurnEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// SelectionEvent captures a speaker pick.
type SelectionEvent struct {
	EventType  string
	InstanceID string
	Strategy   string
	Speaker    string
	OccurredAt time.Time
}

func NewSelectionEvent(instanceID, strategy, speaker string) SelectionEvent {
	return SelectionEvent{
		EventType:  "speaker_selected",
		InstanceID: instanceID,
		Strategy:   strategy,
		Speaker:    speaker,
		OccurredAt: time.Now().UTC(),
	}
}

func (e SelectionEvent) Type() string {
	return e.EventType
}

func (e SelectionEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// BroadcastEvent captures a task broadcast and its per-agent failures.
type BroadcastEvent struct {
	EventType  string
	InstanceID string
	Recipients int
	Failed     []string
	OccurredAt time.Time
}

func NewBroadcastEvent(instanceID string, recipients int, failed []string) BroadcastEvent {
	return BroadcastEvent{
		EventType:  "broadcast_sent",
		InstanceID: instanceID,
		Recipients: recipients,
		Failed:     failed,
		OccurredAt: time.Now().UTC(),
	}
}

func (e BroadcastEvent) Type() string {
	return e.EventType
}

func (e BroadcastEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// ResponseEvent captures an agent response arriving at the coordinator.
type ResponseEvent struct {
	EventType  string
	InstanceID string
	Agent      string
	OccurredAt time.Time
}

func NewResponseEvent(eventType, instanceID, agent string) ResponseEvent {
	return ResponseEvent{
		EventType:  eventType,
		InstanceID: instanceID,
		Agent:      agent,
		OccurredAt: time.Now().UTC(),
	}
}

func (e ResponseEvent) Type() string {
	return e.EventType
}

func (e ResponseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// RegistryEvent captures agent registration changes.
type RegistryEvent struct {
	EventType  string
	AgentName  string
	OccurredAt time.Time
}

func NewRegistryEvent(eventType, agentName string) RegistryEvent {
	return RegistryEvent{
		EventType:  eventType,
		AgentName:  agentName,
		OccurredAt: time.Now().UTC(),
	}
}

func (e RegistryEvent) Type() string {
	return e.EventType
}

func (e RegistryEvent) Timestamp() time.Time {
	return e.OccurredAt
}
