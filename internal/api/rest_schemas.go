package api

import (
	"errors"
	"net/http"
	"strings"

	"parley/internal/schema"
)

// handleSchemas lists the registered file-format schema names.
func (h *RestHandler) handleSchemas(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	writeJSON(w, http.StatusOK, schema.Names())
	return nil
}

// handleSchema serves one reflected JSON schema, for editors validating
// parley.yaml or the agents manifest.
func (h *RestHandler) handleSchema(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}

	name := parseSchemaPath(r.URL.Path)
	if name == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "missing schema name"}
	}

	s, err := schema.Resolve(name)
	if err != nil {
		if errors.Is(err, schema.ErrUnknown) {
			return &apiError{Status: http.StatusNotFound, Message: "schema not found"}
		}
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to build schema"}
	}

	writeJSON(w, http.StatusOK, s)
	return nil
}

func parseSchemaPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/schemas/")
	if trimmed == path {
		return ""
	}
	return strings.TrimSuffix(trimmed, "/")
}
