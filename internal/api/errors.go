package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/studyhub/assistant/internal/auth"
	"github.com/studyhub/assistant/internal/core"
	"github.com/studyhub/assistant/internal/store"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// upstreamFailures are returned to clients by their sentinel message; the wrapped cause stays in the logs.
var upstreamFailures = []error{core.ErrSearchFailed, core.ErrAnalysisFailed, core.ErrImportFailed}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Message: message, Code: code}})
}

// errorStatus maps a service error onto the HTTP response it should produce.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, core.ErrEmailTaken):
		return http.StatusConflict, "email_taken", core.ErrEmailTaken.Error()
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", core.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "Invalid token"
	case errors.Is(err, core.ErrMissingCredential):
		return http.StatusServiceUnavailable, "missing_credential", err.Error()
	}
	for _, sentinel := range upstreamFailures {
		if errors.Is(err, sentinel) {
			return http.StatusBadGateway, "upstream_failure", sentinel.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error", "Internal server error"
}
