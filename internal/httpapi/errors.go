package httpapi

import (
	"encoding/json"
	"net/http"

	"validd/internal/engine"
	"validd/internal/manager"
	"validd/pkg/types"
)

// statusForError maps service errors onto HTTP status codes. Anything that
// means "try again later or fix the deployment" is 503; only a failed native
// call on an otherwise healthy setup is 500.
func statusForError(err error) int {
	switch {
	case manager.IsInvalidInput(err):
		return http.StatusBadRequest
	case manager.IsDescriptorNotFound(err):
		return http.StatusNotFound
	case manager.IsResourceExhausted(err),
		manager.IsArtifactInvalid(err),
		manager.IsLoadFailed(err),
		manager.IsLoadTimeout(err),
		manager.IsNotLoaded(err),
		engine.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case manager.IsInferenceFailed(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
