package httpapi

import (
	"encoding/json"
	"net/http"

	"lmhost/internal/languagemodel"
	"lmhost/internal/manager"
	"lmhost/pkg/types"
)

// StatusClientClosedRequest reports a request aborted by its caller.
const StatusClientClosedRequest = 499

// errorStatus maps an error onto an HTTP status and error kind.
func errorStatus(err error) (int, string) {
	switch kind := languagemodel.KindOf(err); kind {
	case languagemodel.KindInvalidArgument:
		return http.StatusBadRequest, kind.String()
	case languagemodel.KindCapability:
		return http.StatusUnprocessableEntity, kind.String()
	case languagemodel.KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge, kind.String()
	case languagemodel.KindDisposed:
		return http.StatusGone, kind.String()
	case languagemodel.KindUnavailable:
		return http.StatusServiceUnavailable, kind.String()
	case languagemodel.KindAborted:
		return StatusClientClosedRequest, kind.String()
	}
	switch {
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, "too_busy"
	case manager.IsModelNotFound(err):
		return http.StatusNotFound, "not_found"
	case manager.IsModelUnavailable(err), manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable, languagemodel.KindUnavailable.String()
	}
	return http.StatusInternalServerError, languagemodel.KindInternal.String()
}

// errorBody builds the payload for err.
func errorBody(err error) types.ErrorResponse {
	status, kind := errorStatus(err)
	return types.ErrorResponse{Error: err.Error(), Code: status, Kind: kind}
}

// writeError writes err with its mapped status.
func writeError(w http.ResponseWriter, err error) int {
	body := errorBody(err)
	if body.Code == http.StatusTooManyRequests {
		IncrementBackpressure("queue")
	}
	writeJSON(w, body.Code, body)
	return body.Code
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
