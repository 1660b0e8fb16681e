package api

import (
	"net/http"
	"time"

	"parley/internal/version"
)

func (h *RestHandler) handleStatus(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireCoordinator(); err != nil {
		return err
	}
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}

	agentCount := 0
	if h.Registry != nil {
		records, err := h.Registry.List(r.Context())
		if err != nil {
			if h.Logger != nil {
				h.Logger.Warn("registry list failed", map[string]string{
					"error": err.Error(),
				})
			}
		} else {
			agentCount = len(records)
		}
	}

	cfg := h.Coordinator.OrchestratorConfig()
	versionInfo := version.GetVersionInfo()
	now := time.Now().UTC()
	response := statusResponse{
		Name:          cfg.Name,
		Strategy:      cfg.Strategy,
		MaxIterations: cfg.MaxIterations,
		TimeoutSecs:   cfg.TimeoutSeconds,
		AgentCount:    agentCount,
		ServerTime:    now,
		Version:       versionInfo.Version,
		Major:         versionInfo.Major,
		Minor:         versionInfo.Minor,
		Patch:         versionInfo.Patch,
		Built:         versionInfo.Built,
		GitCommit:     versionInfo.GitCommit,
	}
	if !h.StartedAt.IsZero() {
		response.UptimeSecs = int64(now.Sub(h.StartedAt) / time.Second)
	}

	writeJSON(w, http.StatusOK, response)
	return nil
}
