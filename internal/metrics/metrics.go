package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry collects orchestration counters and per-activity stats. All
// methods are safe on a nil receiver so instrumentation never needs guards.
type Registry struct {
	runsStarted        atomic.Int64
	runsCompleted      atomic.Int64
	runsFailed         atomic.Int64
	turnsExecuted      atomic.Int64
	turnTimeouts       atomic.Int64
	triggersSent       atomic.Int64
	broadcastPublishes atomic.Int64
	broadcastFailures  atomic.Int64
	responsesIngested  atomic.Int64
	responsesDiscarded atomic.Int64
	eventsPublished    atomic.Int64
	eventsDropped      atomic.Int64
	selections         sync.Map
	activities         sync.Map
}

type activityStats struct {
	count         atomic.Int64
	failures      atomic.Int64
	retries       atomic.Int64
	durationNanos atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncRunStarted() {
	if r == nil {
		return
	}
	r.runsStarted.Add(1)
}

func (r *Registry) IncRunCompleted() {
	if r == nil {
		return
	}
	r.runsCompleted.Add(1)
}

func (r *Registry) IncRunFailed() {
	if r == nil {
		return
	}
	r.runsFailed.Add(1)
}

func (r *Registry) IncTurnExecuted() {
	if r == nil {
		return
	}
	r.turnsExecuted.Add(1)
}

func (r *Registry) IncTurnTimeout() {
	if r == nil {
		return
	}
	r.turnTimeouts.Add(1)
}

func (r *Registry) IncTriggerSent() {
	if r == nil {
		return
	}
	r.triggersSent.Add(1)
}

func (r *Registry) IncBroadcastPublish() {
	if r == nil {
		return
	}
	r.broadcastPublishes.Add(1)
}

func (r *Registry) IncBroadcastFailure() {
	if r == nil {
		return
	}
	r.broadcastFailures.Add(1)
}

func (r *Registry) IncResponseIngested() {
	if r == nil {
		return
	}
	r.responsesIngested.Add(1)
}

func (r *Registry) IncResponseDiscarded() {
	if r == nil {
		return
	}
	r.responsesDiscarded.Add(1)
}

func (r *Registry) IncEventPublished() {
	if r == nil {
		return
	}
	r.eventsPublished.Add(1)
}

func (r *Registry) IncEventDropped() {
	if r == nil {
		return
	}
	r.eventsDropped.Add(1)
}

// IncSelection counts a speaker pick per strategy tag.
func (r *Registry) IncSelection(strategy string) {
	if r == nil {
		return
	}
	if strings.TrimSpace(strategy) == "" {
		strategy = "unknown"
	}
	value, _ := r.selections.LoadOrStore(strategy, &atomic.Int64{})
	value.(*atomic.Int64).Add(1)
}

func (r *Registry) RecordActivity(name string, duration time.Duration, err error, attempt int32) {
	if r == nil {
		return
	}
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	stats := r.activityStats(name)
	stats.count.Add(1)
	stats.durationNanos.Add(duration.Nanoseconds())
	if err != nil {
		stats.failures.Add(1)
	}
	if attempt > 1 {
		stats.retries.Add(1)
	}
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "parley_runs_started_total", "Total orchestration runs started", r.runsStarted.Load())
	writeCounter(writer, "parley_runs_completed_total", "Total orchestration runs completed", r.runsCompleted.Load())
	writeCounter(writer, "parley_runs_failed_total", "Total orchestration runs failed", r.runsFailed.Load())
	writeCounter(writer, "parley_turns_executed_total", "Total turns executed", r.turnsExecuted.Load())
	writeCounter(writer, "parley_turn_timeouts_total", "Total turns ended by timeout", r.turnTimeouts.Load())
	writeCounter(writer, "parley_triggers_sent_total", "Total agent triggers published", r.triggersSent.Load())
	writeCounter(writer, "parley_broadcast_publishes_total", "Total broadcast publishes", r.broadcastPublishes.Load())
	writeCounter(writer, "parley_broadcast_failures_total", "Total failed broadcast publishes", r.broadcastFailures.Load())
	writeCounter(writer, "parley_responses_ingested_total", "Total agent responses ingested", r.responsesIngested.Load())
	writeCounter(writer, "parley_responses_discarded_total", "Total agent responses discarded", r.responsesDiscarded.Load())
	writeCounter(writer, "parley_bus_events_published_total", "Total events published on the internal bus", r.eventsPublished.Load())
	writeCounter(writer, "parley_bus_events_dropped_total", "Total events dropped by slow subscribers", r.eventsDropped.Load())

	selectionStrategies := r.selectionStrategies()
	sort.Strings(selectionStrategies)
	writeHelp(writer, "parley_selections_total", "Total speaker selections by strategy")
	fmt.Fprintln(writer, "# TYPE parley_selections_total counter")
	for _, strategy := range selectionStrategies {
		value, _ := r.selections.Load(strategy)
		fmt.Fprintf(writer, "parley_selections_total{strategy=%s} %d\n", formatLabel(strategy), value.(*atomic.Int64).Load())
	}

	activityNames := r.activityNames()
	sort.Strings(activityNames)

	writeHelp(writer, "parley_activity_duration_seconds", "Activity duration in seconds")
	fmt.Fprintln(writer, "# TYPE parley_activity_duration_seconds summary")
	writeHelp(writer, "parley_activity_failures_total", "Activity failures")
	fmt.Fprintln(writer, "# TYPE parley_activity_failures_total counter")
	writeHelp(writer, "parley_activity_retries_total", "Activity retries")
	fmt.Fprintln(writer, "# TYPE parley_activity_retries_total counter")

	for _, name := range activityNames {
		stats := r.activityStats(name)
		label := formatLabel(name)
		durationSeconds := float64(stats.durationNanos.Load()) / float64(time.Second)
		fmt.Fprintf(writer, "parley_activity_duration_seconds_sum{activity=%s} %.6f\n", label, durationSeconds)
		fmt.Fprintf(writer, "parley_activity_duration_seconds_count{activity=%s} %d\n", label, stats.count.Load())
		fmt.Fprintf(writer, "parley_activity_failures_total{activity=%s} %d\n", label, stats.failures.Load())
		fmt.Fprintf(writer, "parley_activity_retries_total{activity=%s} %d\n", label, stats.retries.Load())
	}

	return nil
}

func (r *Registry) activityStats(name string) *activityStats {
	value, _ := r.activities.LoadOrStore(name, &activityStats{})
	return value.(*activityStats)
}

func (r *Registry) activityNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	r.activities.Range(func(key, value interface{}) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	return names
}

func (r *Registry) selectionStrategies() []string {
	if r == nil {
		return nil
	}
	var strategies []string
	r.selections.Range(func(key, value interface{}) bool {
		if strategy, ok := key.(string); ok {
			strategies = append(strategies, strategy)
		}
		return true
	})
	return strategies
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
