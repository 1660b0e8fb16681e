package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/orchestrator"
	registrypkg "parley/internal/registry"
	"parley/internal/store"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type fakeCoordinator struct {
	mu       sync.Mutex
	cfg      config.OrchestratorConfig
	tasks    []string
	nextID   string
	startErr error
}

func (f *fakeCoordinator) StartRun(ctx context.Context, task string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.tasks = append(f.tasks, task)
	if f.nextID == "" {
		return "parley-run-test", nil
	}
	return f.nextID, nil
}

func (f *fakeCoordinator) OrchestratorConfig() config.OrchestratorConfig {
	return f.cfg
}

func (f *fakeCoordinator) startedTasks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tasks...)
}

type fakeEncodedState struct {
	state orchestrator.OrchestratorState
}

func (f fakeEncodedState) HasValue() bool {
	return true
}

func (f fakeEncodedState) Get(valuePtr interface{}) error {
	target, ok := valuePtr.(*orchestrator.OrchestratorState)
	if !ok {
		return errors.New("unexpected query target")
	}
	*target = f.state
	return nil
}

type fakeQueryClient struct {
	mu       sync.Mutex
	state    orchestrator.OrchestratorState
	queryErr error
	queried  []string
}

func (f *fakeQueryClient) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflowType interface{}, args ...interface{}) (client.WorkflowRun, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQueryClient) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	return nil
}

func (f *fakeQueryClient) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error) {
	f.mu.Lock()
	f.queried = append(f.queried, workflowID)
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return fakeEncodedState{state: f.state}, nil
}

func (f *fakeQueryClient) Close() {}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "parley.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func newTestRegistry(t *testing.T, st *store.Store) *registrypkg.Client {
	t.Helper()
	reg, err := registrypkg.New(registrypkg.Options{Store: st, Key: "agents", SelfName: "parley"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func testCoordinatorConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		Name:           "parley",
		MaxIterations:  5,
		TimeoutSeconds: 60,
		Strategy:       config.StrategyRoundRobin,
	}
}

func TestStatusHandlerRequiresAuth(t *testing.T) {
	handler := &RestHandler{}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	res := httptest.NewRecorder()

	restHandler("secret", nil, handler.handleStatus)(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	st := newTestStore(t)
	reg := newTestRegistry(t, st)
	for _, name := range []string{"echo", "scribe"} {
		if err := reg.Register(context.Background(), store.AgentRecord{Name: name, Source: store.AgentSourceAPI}); err != nil {
			t.Fatalf("register agent: %v", err)
		}
	}

	handler := &RestHandler{
		Coordinator: &fakeCoordinator{cfg: testCoordinatorConfig()},
		Registry:    reg,
	}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res := httptest.NewRecorder()

	restHandler("secret", nil, handler.handleStatus)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload statusResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Name != "parley" {
		t.Fatalf("expected name parley, got %q", payload.Name)
	}
	if payload.Strategy != config.StrategyRoundRobin {
		t.Fatalf("expected strategy roundrobin, got %q", payload.Strategy)
	}
	if payload.MaxIterations != 5 {
		t.Fatalf("expected 5 max iterations, got %d", payload.MaxIterations)
	}
	if payload.AgentCount != 2 {
		t.Fatalf("expected 2 agents, got %d", payload.AgentCount)
	}
	if payload.ServerTime.IsZero() {
		t.Fatalf("expected server time to be set")
	}
}

func TestCreateRunEndpoint(t *testing.T) {
	coordinator := &fakeCoordinator{cfg: testCoordinatorConfig(), nextID: "parley-run-42"}
	handler := &RestHandler{Coordinator: coordinator}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"task":"write a haiku"}`))
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRuns)(res, req)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var payload runStartedResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.InstanceID != "parley-run-42" {
		t.Fatalf("expected instance parley-run-42, got %q", payload.InstanceID)
	}
	if payload.Status != store.RunStatusRunning {
		t.Fatalf("expected status running, got %q", payload.Status)
	}

	tasks := coordinator.startedTasks()
	if len(tasks) != 1 || tasks[0] != "write a haiku" {
		t.Fatalf("expected submitted task, got %v", tasks)
	}
}

func TestCreateRunRejectsEmptyTask(t *testing.T) {
	coordinator := &fakeCoordinator{cfg: testCoordinatorConfig()}
	handler := &RestHandler{Coordinator: coordinator}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"task":"   "}`))
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRuns)(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(coordinator.startedTasks()) != 0 {
		t.Fatalf("expected no runs started")
	}

	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "invalid_request" {
		t.Fatalf("expected code invalid_request, got %q", payload.Code)
	}
}

func TestCreateRunRejectsUnknownFields(t *testing.T) {
	handler := &RestHandler{Coordinator: &fakeCoordinator{cfg: testCoordinatorConfig()}}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"task":"x","speaker":"echo"}`))
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRuns)(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListRunsEndpoint(t *testing.T) {
	st := newTestStore(t)
	if err := st.CreateRun("parley-run-1", "first task", "roundrobin"); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.CreateRun("parley-run-2", "second task", "random"); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.CompleteRun("parley-run-1", "done"); err != nil {
		t.Fatalf("complete run: %v", err)
	}

	handler := &RestHandler{Store: st}
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRuns)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var runs []store.Run
	if err := json.NewDecoder(res.Body).Decode(&runs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleRuns)(res, req)
	runs = nil
	if err := json.NewDecoder(res.Body).Decode(&runs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run with limit, got %d", len(runs))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleRuns)(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", res.Code)
	}
}

func TestGetRunEndpoint(t *testing.T) {
	st := newTestStore(t)
	if err := st.CreateRun("parley-run-7", "summarize", "roundrobin"); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.SaveTurn(store.Turn{InstanceID: "parley-run-7", Turn: 1, Speaker: "echo", Content: "summary v1"}); err != nil {
		t.Fatalf("save turn: %v", err)
	}
	if err := st.AppendMessage("parley-run-7", "assistant", "echo", "summary v1"); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := st.CompleteRun("parley-run-7", "summary v1"); err != nil {
		t.Fatalf("complete run: %v", err)
	}

	handler := &RestHandler{Store: st}
	req := httptest.NewRequest(http.MethodGet, "/api/runs/parley-run-7", nil)
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRun)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload runDetailResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Run == nil || payload.Run.Status != store.RunStatusCompleted {
		t.Fatalf("expected completed run, got %+v", payload.Run)
	}
	if payload.Run.Output != "summary v1" {
		t.Fatalf("expected output summary v1, got %q", payload.Run.Output)
	}
	if len(payload.Turns) != 1 || payload.Turns[0].Speaker != "echo" {
		t.Fatalf("expected one echo turn, got %+v", payload.Turns)
	}
	if len(payload.Messages) != 1 || payload.Messages[0].Name != "echo" {
		t.Fatalf("expected one echo message, got %+v", payload.Messages)
	}
	if payload.Live != nil {
		t.Fatalf("expected no live state on finished run")
	}
}

func TestGetRunNotFound(t *testing.T) {
	handler := &RestHandler{Store: newTestStore(t)}
	req := httptest.NewRequest(http.MethodGet, "/api/runs/parley-run-missing", nil)
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRun)(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "not_found" {
		t.Fatalf("expected code not_found, got %q", payload.Code)
	}
}

func TestGetRunLiveState(t *testing.T) {
	st := newTestStore(t)
	if err := st.CreateRun("parley-run-9", "debate", "roundrobin"); err != nil {
		t.Fatalf("create run: %v", err)
	}

	temporalClient := &fakeQueryClient{state: orchestrator.OrchestratorState{
		Turn:           2,
		MaxIterations:  5,
		TimeoutSeconds: 60,
		Strategy:       orchestrator.StrategyRoundRobin,
		CurrentSpeaker: "echo",
		AgentNames:     []string{"echo", "scribe"},
	}}
	handler := &RestHandler{Store: st, Temporal: temporalClient}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/parley-run-9", nil)
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRun)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload runDetailResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Live == nil {
		t.Fatalf("expected live state on running run")
	}
	if payload.Live.Turn != 2 || payload.Live.CurrentSpeaker != "echo" {
		t.Fatalf("unexpected live state: %+v", payload.Live)
	}
	if payload.Live.Strategy != "roundrobin" {
		t.Fatalf("expected strategy roundrobin, got %q", payload.Live.Strategy)
	}

	temporalClient.mu.Lock()
	queried := append([]string(nil), temporalClient.queried...)
	temporalClient.mu.Unlock()
	if len(queried) != 1 || queried[0] != "parley-run-9" {
		t.Fatalf("expected one state query for parley-run-9, got %v", queried)
	}
}

func TestGetRunLiveStateQueryFailure(t *testing.T) {
	st := newTestStore(t)
	if err := st.CreateRun("parley-run-11", "debate", "random"); err != nil {
		t.Fatalf("create run: %v", err)
	}

	handler := &RestHandler{
		Store:    st,
		Temporal: &fakeQueryClient{queryErr: errors.New("query refused")},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/runs/parley-run-11", nil)
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleRun)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 despite query failure, got %d", res.Code)
	}

	var payload runDetailResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Live != nil {
		t.Fatalf("expected nil live state when the query fails")
	}
}

func TestAgentLifecycleEndpoints(t *testing.T) {
	st := newTestStore(t)
	reg := newTestRegistry(t, st)
	handler := &RestHandler{Registry: reg}

	req := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(`{"name":"echo","topic":"custom.inbox","metadata":{"team":"demo"}}`))
	res := httptest.NewRecorder()
	restHandler("", nil, handler.handleAgents)(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleAgents)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var records []store.AgentRecord
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 1 || records[0].Name != "echo" {
		t.Fatalf("expected echo in listing, got %+v", records)
	}
	if records[0].Source != store.AgentSourceAPI {
		t.Fatalf("expected api source, got %q", records[0].Source)
	}
	if records[0].Topic != "custom.inbox" {
		t.Fatalf("expected custom topic, got %q", records[0].Topic)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/agents/echo", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleAgent)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/agents/echo", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleAgent)(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/agents/echo", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleAgent)(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after deregistration, got %d", res.Code)
	}
}

func TestRegisterAgentRequiresName(t *testing.T) {
	handler := &RestHandler{Registry: newTestRegistry(t, newTestStore(t))}

	req := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(`{"topic":"orphan.inbox"}`))
	res := httptest.NewRecorder()
	restHandler("", nil, handler.handleAgents)(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLogsEndpointFilters(t *testing.T) {
	buffer := logging.NewLogBuffer(10)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelDebug, io.Discard)
	logger.Debug("turn scheduling detail", nil)
	logger.Info("run started", nil)
	logger.Info("run completed", nil)

	handler := &RestHandler{Logger: logger}

	req := httptest.NewRequest(http.MethodGet, "/api/logs?level=info", nil)
	res := httptest.NewRecorder()
	restHandler("", nil, handler.handleLogs)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var entries []logging.LogEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 info entries, got %d", len(entries))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/logs?limit=1", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleLogs)(res, req)
	entries = nil
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "run completed" {
		t.Fatalf("expected most recent entry, got %+v", entries)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/logs?level=loud", nil)
	res = httptest.NewRecorder()
	restHandler("", nil, handler.handleLogs)(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad level, got %d", res.Code)
	}
}

func TestLogsEndpointAcceptsClientEntries(t *testing.T) {
	buffer := logging.NewLogBuffer(10)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelDebug, io.Discard)
	handler := &RestHandler{Logger: logger}

	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(`{"level":"warning","message":"agent lagging","context":{"agent":"echo"}}`))
	res := httptest.NewRecorder()
	restHandler("", nil, handler.handleLogs)(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != logging.LevelWarning || entry.Message != "agent lagging" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Context["agent"] != "echo" {
		t.Fatalf("expected agent context, got %v", entry.Context)
	}
	if entry.Context["source"] != "client" {
		t.Fatalf("expected client source, got %v", entry.Context)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := &metrics.Registry{}
	reg.IncRunStarted()
	reg.IncTurnExecuted()

	handler := &RestHandler{Metrics: reg}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()

	restHandler("", nil, handler.handleMetrics)(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if contentType := res.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", contentType)
	}
	body := res.Body.String()
	if !strings.Contains(body, "parley_runs_started_total 1") {
		t.Fatalf("expected runs counter in output:\n%s", body)
	}
	if !strings.Contains(body, "parley_turns_executed_total 1") {
		t.Fatalf("expected turns counter in output:\n%s", body)
	}
}

func TestParseRunPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		id   string
	}{
		{name: "run", path: "/api/runs/parley-run-1", id: "parley-run-1"},
		{name: "trailing-slash", path: "/api/runs/parley-run-1/", id: "parley-run-1"},
		{name: "missing-prefix", path: "/api/run/parley-run-1", id: ""},
		{name: "empty-id", path: "/api/runs/", id: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if id := parseRunPath(test.path); id != test.id {
				t.Fatalf("expected id %q, got %q", test.id, id)
			}
		})
	}
}

func TestParseAgentPath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		agent string
	}{
		{name: "agent", path: "/api/agents/echo", agent: "echo"},
		{name: "trailing-slash", path: "/api/agents/echo/", agent: "echo"},
		{name: "missing-prefix", path: "/api/agent/echo", agent: ""},
		{name: "empty-name", path: "/api/agents/", agent: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if agent := parseAgentPath(test.path); agent != test.agent {
				t.Fatalf("expected agent %q, got %q", test.agent, agent)
			}
		})
	}
}
