package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"parley/internal/store"
)

func (h *RestHandler) handleAgents(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireRegistry(); err != nil {
		return err
	}

	switch r.Method {
	case http.MethodGet:
		return h.listAgents(w, r)
	case http.MethodPost:
		return h.registerAgent(w, r)
	default:
		return methodNotAllowed(w, "GET, POST")
	}
}

func (h *RestHandler) handleAgent(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireRegistry(); err != nil {
		return err
	}

	name := parseAgentPath(r.URL.Path)
	if name == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "missing agent name"}
	}

	switch r.Method {
	case http.MethodGet:
		return h.getAgent(w, r, name)
	case http.MethodDelete:
		return h.deregisterAgent(w, r, name)
	default:
		return methodNotAllowed(w, "GET, DELETE")
	}
}

func (h *RestHandler) listAgents(w http.ResponseWriter, r *http.Request) *apiError {
	records, err := h.Registry.List(r.Context())
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to list agents"}
	}
	writeJSON(w, http.StatusOK, records)
	return nil
}

func (h *RestHandler) registerAgent(w http.ResponseWriter, r *http.Request) *apiError {
	request, apiErr := decodeRegisterAgentRequest(r)
	if apiErr != nil {
		return apiErr
	}

	name := strings.TrimSpace(request.Name)
	if name == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "missing agent name"}
	}

	record := store.AgentRecord{
		Name:     name,
		Topic:    strings.TrimSpace(request.Topic),
		Pubsub:   strings.TrimSpace(request.Pubsub),
		Source:   store.AgentSourceAPI,
		Metadata: request.Metadata,
	}
	if err := h.Registry.Register(r.Context(), record); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("agent registration failed", map[string]string{
				"agent": name,
				"error": err.Error(),
			})
		}
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to register agent"}
	}

	writeJSON(w, http.StatusCreated, record)
	return nil
}

func (h *RestHandler) getAgent(w http.ResponseWriter, r *http.Request, name string) *apiError {
	record, err := h.Registry.Lookup(r.Context(), name)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to load agent"}
	}
	if record == nil {
		return &apiError{Status: http.StatusNotFound, Message: "agent not found"}
	}
	writeJSON(w, http.StatusOK, record)
	return nil
}

func (h *RestHandler) deregisterAgent(w http.ResponseWriter, r *http.Request, name string) *apiError {
	record, err := h.Registry.Lookup(r.Context(), name)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to load agent"}
	}
	if record == nil {
		return &apiError{Status: http.StatusNotFound, Message: "agent not found"}
	}

	if err := h.Registry.Deregister(r.Context(), name); err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to deregister agent"}
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func parseAgentPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/agents/")
	if trimmed == path {
		return ""
	}
	return strings.TrimSuffix(trimmed, "/")
}

func decodeRegisterAgentRequest(r *http.Request) (registerAgentRequest, *apiError) {
	var request registerAgentRequest
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
