package api

import (
	"net/http"
	"time"

	"parley/internal/event"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/registry"
	"parley/internal/store"
	"parley/internal/temporal"
)

// RegisterRoutes wires the REST and websocket surface onto the mux. Nil
// collaborators degrade to per-endpoint errors rather than panics.
func RegisterRoutes(mux *http.ServeMux, coordinator Coordinator, st *store.Store, reg *registry.Client, temporalClient temporal.WorkflowClient, eventBus *event.Bus[event.Event], authToken string, logger *logging.Logger) {
	rest := &RestHandler{
		Coordinator: coordinator,
		Store:       st,
		Registry:    reg,
		Temporal:    temporalClient,
		Logger:      logger,
		Metrics:     metrics.Default,
		StartedAt:   time.Now().UTC(),
	}

	wrap := func(handler apiHandler) http.Handler {
		return loggingMiddleware(logger, restHandler(authToken, logger, handler))
	}

	mux.Handle("/ws/events", securityHeadersMiddleware(cacheControlNoStore, &EventsHandler{
		Bus:       eventBus,
		Logger:    logger,
		AuthToken: authToken,
	}))

	mux.Handle("/api/status", wrap(rest.handleStatus))
	mux.Handle("/api/runs", wrap(rest.handleRuns))
	mux.Handle("/api/runs/", wrap(rest.handleRun))
	mux.Handle("/api/agents", wrap(rest.handleAgents))
	mux.Handle("/api/agents/", wrap(rest.handleAgent))
	mux.Handle("/api/logs", wrap(rest.handleLogs))
	mux.Handle("/api/schemas", wrap(rest.handleSchemas))
	mux.Handle("/api/schemas/", wrap(rest.handleSchema))
	mux.Handle("/metrics", wrap(rest.handleMetrics))
	mux.Handle("/api/", securityHeadersMiddleware(cacheControlNoStore, http.NotFoundHandler()))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, cacheControlNoCache)
		if authToken != "" {
			w.Header().Set("X-Parley-Auth", "required")
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("parley ok\n"))
	})
}
