package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"parley/internal/event"
	"parley/internal/logging"

	"github.com/gorilla/websocket"
)

const eventsPerMinuteLimit = 600
const defaultEventReplayCount = 50

// EventsHandler streams orchestration events over a websocket. New
// connections receive a bounded replay of recent events before the live
// stream; clients may narrow the stream with a subscribe message.
type EventsHandler struct {
	Bus            *event.Bus[event.Event]
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
	ReplayCount    int
}

type eventSubscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

type eventPayload struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	InstanceID string    `json:"instance_id,omitempty"`
	Task       string    `json:"task,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Turn       int       `json:"turn,omitempty"`
	Speaker    string    `json:"speaker,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	Recipients int       `json:"recipients,omitempty"`
	Failed     []string  `json:"failed,omitempty"`
	TimedOut   bool      `json:"timed_out,omitempty"`
	Replay     bool      `json:"replay,omitempty"`
}

type eventFilter struct {
	mutex sync.RWMutex
	types map[string]struct{}
}

func newEventFilter(allowed map[string]struct{}) *eventFilter {
	types := make(map[string]struct{}, len(allowed))
	for eventType := range allowed {
		types[eventType] = struct{}{}
	}
	return &eventFilter{types: types}
}

func (filter *eventFilter) Allows(eventType string) bool {
	if filter == nil {
		return true
	}
	filter.mutex.RLock()
	defer filter.mutex.RUnlock()
	if len(filter.types) == 0 {
		return false
	}
	_, ok := filter.types[eventType]
	return ok
}

func (filter *eventFilter) Set(subscriptions []string, allowed map[string]struct{}) {
	if filter == nil {
		return
	}
	types := make(map[string]struct{})
	for _, eventType := range subscriptions {
		if _, ok := allowed[eventType]; ok {
			types[eventType] = struct{}{}
		}
	}
	filter.mutex.Lock()
	filter.types = types
	filter.mutex.Unlock()
}

type rateLimiter struct {
	mutex       sync.Mutex
	count       int
	windowStart time.Time
}

func (limiter *rateLimiter) Allow(now time.Time) bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	if limiter.windowStart.IsZero() || now.Sub(limiter.windowStart) >= time.Minute {
		limiter.windowStart = now
		limiter.count = 0
	}
	if limiter.count >= eventsPerMinuteLimit {
		return false
	}
	limiter.count++
	return true
}

func orchestrationEventTypes() map[string]struct{} {
	return map[string]struct{}{
		"run_started":        {},
		"run_completed":      {},
		"run_failed":         {},
		"turn_completed":     {},
		"turn_timeout":       {},
		"speaker_selected":   {},
		"broadcast_sent":     {},
		"response_received":  {},
		"agent_registered":   {},
		"agent_deregistered": {},
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}

	allowed := orchestrationEventTypes()
	filter := newEventFilter(allowed)
	limiter := &rateLimiter{}

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSError(h.Logger, r, wsError{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}
	defer conn.Close()

	if h.Bus == nil {
		writeWSError(w, r, conn, h.Logger, wsError{
			Status:       http.StatusInternalServerError,
			Message:      "event bus unavailable",
			SendEnvelope: true,
		})
		return
	}

	events, cancel := h.Bus.SubscribeFiltered(func(ev event.Event) bool {
		if ev == nil {
			return false
		}
		_, ok := allowed[ev.Type()]
		return ok
	})
	if events == nil {
		writeWSError(w, r, conn, h.Logger, wsError{
			Status:       http.StatusInternalServerError,
			Message:      "event stream unavailable",
			SendEnvelope: true,
		})
		return
	}

	replayCount := h.ReplayCount
	if replayCount <= 0 {
		replayCount = defaultEventReplayCount
	}
	backfill := make(chan event.Event, replayCount)
	h.Bus.ReplayLast(replayCount, backfill)
	close(backfill)

	writer, err := startWSWriteLoop(w, r, wsStreamConfig[event.Event]{
		Conn:           conn,
		AllowedOrigins: h.AllowedOrigins,
		Output:         events,
		Logger:         h.Logger,
		PreWrite: func(conn *websocket.Conn) error {
			return writeEventBackfill(conn, backfill, filter)
		},
		BuildPayload: func(ev event.Event) (any, bool) {
			payload, ok := buildEventPayload(ev, false)
			if !ok {
				return nil, false
			}
			if !filter.Allows(payload.Type) {
				return nil, false
			}
			if !limiter.Allow(time.Now()) {
				return nil, false
			}
			return payload, true
		},
	})
	if err != nil {
		cancel()
		writeWSError(w, r, conn, h.Logger, wsError{
			Status:       http.StatusInternalServerError,
			Message:      "event stream unavailable",
			Err:          err,
			SendEnvelope: true,
		})
		return
	}
	defer cancel()
	defer writer.Stop()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var payload eventSubscribeMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		filter.Set(payload.Subscribe, allowed)
	}
}

func writeEventBackfill(conn *websocket.Conn, backfill <-chan event.Event, filter *eventFilter) error {
	if conn == nil {
		return nil
	}
	for ev := range backfill {
		payload, ok := buildEventPayload(ev, true)
		if !ok {
			continue
		}
		if !filter.Allows(payload.Type) {
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		if err := conn.WriteJSON(payload); err != nil {
			return err
		}
	}
	return nil
}

func buildEventPayload(ev event.Event, replay bool) (eventPayload, bool) {
	if ev == nil {
		return eventPayload{}, false
	}

	payload := eventPayload{
		Type:      ev.Type(),
		Timestamp: ev.Timestamp(),
		Replay:    replay,
	}
	switch typed := ev.(type) {
	case event.RunEvent:
		payload.InstanceID = typed.InstanceID
		payload.Task = typed.Task
		payload.Detail = typed.Detail
	case event.TurnEvent:
		payload.InstanceID = typed.InstanceID
		payload.Turn = typed.Turn
		payload.Speaker = typed.Speaker
		payload.TimedOut = typed.TimedOut
	case event.SelectionEvent:
		payload.InstanceID = typed.InstanceID
		payload.Strategy = typed.Strategy
		payload.Speaker = typed.Speaker
	case event.BroadcastEvent:
		payload.InstanceID = typed.InstanceID
		payload.Recipients = typed.Recipients
		payload.Failed = typed.Failed
	case event.ResponseEvent:
		payload.InstanceID = typed.InstanceID
		payload.Agent = typed.Agent
	case event.RegistryEvent:
		payload.Agent = typed.AgentName
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	return payload, true
}
