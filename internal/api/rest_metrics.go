package api

import "net/http"

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	if h.Metrics == nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "metrics unavailable"}
	}
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := h.Metrics.WritePrometheus(w); err != nil && h.Logger != nil {
		h.Logger.Warn("metrics export failed", map[string]string{
			"error": err.Error(),
		})
	}
	return nil
}
