package httpapi

import (
	"encoding/json"
	"net/http"

	"nnevald/internal/nn"
	"nnevald/internal/session"
	"nnevald/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps well-known service errors to HTTP status codes.
// Unrecognized errors are treated as internal.
func statusForError(err error) int {
	switch {
	case session.IsSlotOccupied(err):
		return http.StatusConflict
	case session.IsSlotEmpty(err), session.IsInvalidSlot(err), session.IsNetworkNotFound(err):
		return http.StatusNotFound
	case session.IsInvalidDevice(err):
		return http.StatusBadRequest
	case session.IsBadNetwork(err):
		return http.StatusUnprocessableEntity
	case nn.IsBatchTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case nn.IsInvalidMove(err), nn.IsTooManyMoves(err):
		return http.StatusBadRequest
	case nn.IsFailedInstance(err):
		return http.StatusConflict
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
