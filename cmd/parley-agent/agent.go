package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"parley/internal/logging"
	"parley/internal/message"
	"parley/internal/natsbus"
)

// replyPublisher is the slice of the bus client the agent needs.
type replyPublisher interface {
	Publish(topic string, payload []byte, headers map[string]string) error
}

// echoAgent answers turn triggers with the last broadcast task. Broadcasts
// seed the task and never get a reply; directed triggers are answered on
// the reply subject.
type echoAgent struct {
	name   string
	prefix string
	bus    replyPublisher
	logger *logging.Logger

	mu       sync.Mutex
	lastTask string
	turns    int
}

func newEchoAgent(name, prefix string, bus replyPublisher, logger *logging.Logger) *echoAgent {
	if strings.TrimSpace(prefix) == "" {
		prefix = "echo:"
	}
	return &echoAgent{
		name:   name,
		prefix: prefix,
		bus:    bus,
		logger: logger,
	}
}

func (a *echoAgent) TriggerTopic() string {
	return natsbus.TriggerTopic(a.name, "")
}

// HandleMessage is the trigger-topic subscription callback.
func (a *echoAgent) HandleMessage(msg *nats.Msg) {
	if natsbus.HeaderValue(msg.Header, message.HeaderBroadcast) == "true" {
		a.handleBroadcast(msg)
		return
	}
	a.handleTrigger(msg)
}

func (a *echoAgent) handleBroadcast(msg *nats.Msg) {
	var broadcast message.BroadcastMessage
	if err := json.Unmarshal(msg.Data, &broadcast); err != nil {
		a.logWarn("broadcast decode failed", map[string]string{
			"error": err.Error(),
		})
		return
	}
	if err := broadcast.Validate(); err != nil {
		a.logWarn("broadcast rejected", map[string]string{
			"error": err.Error(),
		})
		return
	}

	a.mu.Lock()
	a.lastTask = broadcast.Content
	a.turns = 0
	a.mu.Unlock()

	a.logInfo("task received", map[string]string{
		"sender": natsbus.HeaderValue(msg.Header, message.HeaderSender),
	})
}

func (a *echoAgent) handleTrigger(msg *nats.Msg) {
	action, err := message.DecodeTriggerAction(msg.Data)
	if err != nil {
		a.logWarn("trigger decode failed", map[string]string{
			"error": err.Error(),
		})
		return
	}
	instanceID := natsbus.HeaderValue(msg.Header, message.HeaderWorkflowInstanceID)
	if instanceID == "" {
		instanceID = action.WorkflowInstanceID
	}
	if action.Task != nil && strings.TrimSpace(*action.Task) != "" {
		a.mu.Lock()
		a.lastTask = *action.Task
		a.mu.Unlock()
	}

	replyTopic := msg.Reply
	if replyTopic == "" {
		replyTopic = natsbus.HeaderValue(msg.Header, message.HeaderSender)
	}
	if replyTopic == "" {
		a.logWarn("trigger has no reply subject", map[string]string{
			"instance_id": instanceID,
		})
		return
	}

	response := a.composeResponse(instanceID)
	payload, err := json.Marshal(response)
	if err != nil {
		a.logWarn("response encode failed", map[string]string{
			"error": err.Error(),
		})
		return
	}
	headers := map[string]string{
		message.HeaderSender:             a.name,
		message.HeaderWorkflowInstanceID: instanceID,
	}
	if err := a.bus.Publish(replyTopic, payload, headers); err != nil {
		a.logWarn("response publish failed", map[string]string{
			"topic": replyTopic,
			"error": err.Error(),
		})
		return
	}
	a.logInfo("turn answered", map[string]string{
		"instance_id": instanceID,
		"reply_to":    replyTopic,
	})
}

// composeResponse builds this turn's answer. A reply always carries
// content; an agent that missed the broadcast still takes its turn.
func (a *echoAgent) composeResponse(instanceID string) message.AgentTaskResponse {
	a.mu.Lock()
	a.turns++
	turn := a.turns
	task := a.lastTask
	a.mu.Unlock()

	content := fmt.Sprintf("%s standing by (turn %d)", a.prefix, turn)
	if strings.TrimSpace(task) != "" {
		content = fmt.Sprintf("%s %s (turn %d)", a.prefix, task, turn)
	}
	return message.AgentTaskResponse{
		Role:               message.RoleAssistant,
		Content:            content,
		Name:               a.name,
		WorkflowInstanceID: instanceID,
	}
}

func (a *echoAgent) logInfo(msg string, fields map[string]string) {
	if a.logger != nil {
		a.logger.Info(msg, fields)
	}
}

func (a *echoAgent) logWarn(msg string, fields map[string]string) {
	if a.logger != nil {
		a.logger.Warn(msg, fields)
	}
}
