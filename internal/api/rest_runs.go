package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parley/internal/orchestrator"
	"parley/internal/store"
	"parley/internal/temporal"

	"go.temporal.io/api/serviceerror"
)

const defaultRunListLimit = 50
const runStateQueryTimeout = 3 * time.Second

func (h *RestHandler) handleRuns(w http.ResponseWriter, r *http.Request) *apiError {
	switch r.Method {
	case http.MethodGet:
		return h.listRuns(w, r)
	case http.MethodPost:
		return h.createRun(w, r)
	default:
		return methodNotAllowed(w, "GET, POST")
	}
}

func (h *RestHandler) handleRun(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireStore(); err != nil {
		return err
	}
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}

	instanceID := parseRunPath(r.URL.Path)
	if instanceID == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "missing run id"}
	}

	run, err := h.Store.GetRun(instanceID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return &apiError{Status: http.StatusNotFound, Message: "run not found"}
		}
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to load run"}
	}

	turns, err := h.Store.ListTurns(instanceID)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to load turns"}
	}
	messages, err := h.Store.ListMessages(instanceID)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to load messages"}
	}

	response := runDetailResponse{
		Run:      run,
		Turns:    turns,
		Messages: messages,
	}
	if run.Status == store.RunStatusRunning {
		response.Live = h.liveRunState(r.Context(), instanceID)
	}

	writeJSON(w, http.StatusOK, response)
	return nil
}

func (h *RestHandler) listRuns(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireStore(); err != nil {
		return err
	}

	limit := defaultRunListLimit
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
		}
		limit = parsed
	}

	runs, err := h.Store.ListRuns(limit)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to list runs"}
	}
	writeJSON(w, http.StatusOK, runs)
	return nil
}

func (h *RestHandler) createRun(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireCoordinator(); err != nil {
		return err
	}

	request, apiErr := decodeCreateRunRequest(r)
	if apiErr != nil {
		return apiErr
	}
	if strings.TrimSpace(request.Task) == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "missing task"}
	}

	instanceID, err := h.Coordinator.StartRun(r.Context(), request.Task)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("run submission failed", map[string]string{
				"error": err.Error(),
			})
		}
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to start run"}
	}

	writeJSON(w, http.StatusAccepted, runStartedResponse{
		InstanceID: instanceID,
		Status:     store.RunStatusRunning,
	})
	return nil
}

// liveRunState queries the workflow for its loop state. A NotFound means the
// run finished between the store read and the query; that is not an error.
func (h *RestHandler) liveRunState(ctx context.Context, instanceID string) *runStateView {
	state, err := queryRunState(ctx, h.Temporal, instanceID)
	if err != nil {
		var notFound *serviceerror.NotFound
		if !errors.As(err, &notFound) && h.Logger != nil {
			h.Logger.Warn("run state query failed", map[string]string{
				"instance_id": instanceID,
				"error":       err.Error(),
			})
		}
		return nil
	}
	return &runStateView{
		Turn:              state.Turn,
		MaxIterations:     state.MaxIterations,
		TimeoutSecs:       state.TimeoutSeconds,
		Strategy:          string(state.Strategy),
		CurrentSpeaker:    state.CurrentSpeaker,
		CurrentAgentIndex: state.CurrentAgentIndex,
		AgentNames:        state.AgentNames,
	}
}

func queryRunState(ctx context.Context, temporalClient temporal.WorkflowClient, instanceID string) (orchestrator.OrchestratorState, error) {
	var state orchestrator.OrchestratorState
	if temporalClient == nil {
		return state, errors.New("temporal client unavailable")
	}
	if instanceID == "" {
		return state, errors.New("instance id required")
	}

	queryContext, cancel := context.WithTimeout(ctx, runStateQueryTimeout)
	defer cancel()

	encodedValue, err := temporalClient.QueryWorkflow(queryContext, instanceID, "", orchestrator.StateQueryName)
	if err != nil {
		return state, err
	}
	if encodedValue == nil || !encodedValue.HasValue() {
		return state, errors.New("run state unavailable")
	}
	if err := encodedValue.Get(&state); err != nil {
		return state, err
	}
	return state, nil
}

func parseRunPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/runs/")
	if trimmed == path {
		return ""
	}
	return strings.TrimSuffix(trimmed, "/")
}

func decodeCreateRunRequest(r *http.Request) (createRunRequest, *apiError) {
	var request createRunRequest
	if r.Body == nil {
		return request, nil
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil && err != io.EOF {
		return request, &apiError{Status: http.StatusBadRequest, Message: "invalid request body"}
	}

	return request, nil
}
