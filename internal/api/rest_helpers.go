package api

import "net/http"

func (h *RestHandler) requireCoordinator() *apiError {
	if h.Coordinator == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "coordinator unavailable"}
	}
	return nil
}

func (h *RestHandler) requireStore() *apiError {
	if h.Store == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "state store unavailable"}
	}
	return nil
}

func (h *RestHandler) requireRegistry() *apiError {
	if h.Registry == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "agent registry unavailable"}
	}
	return nil
}

func (h *RestHandler) requireLogger() *apiError {
	if h.Logger == nil || h.Logger.Buffer() == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "log buffer unavailable"}
	}
	return nil
}
