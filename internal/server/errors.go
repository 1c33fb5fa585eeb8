package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"fleet-manifests/internal/types"
)

type errorBody struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// statusFor maps domain kinds first and falls back to the errbuilder code.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindCycle, types.KindScope, types.KindUnresolvedReference, types.KindConflict:
		return http.StatusUnprocessableEntity
	case types.KindStaleResolution:
		return http.StatusConflict
	}
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeNotFound:
		return http.StatusNotFound
	case errbuilder.CodeInvalidArgument:
		return http.StatusBadRequest
	case errbuilder.CodePermissionDenied:
		return http.StatusUnauthorized
	case errbuilder.CodeFailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var classified *types.Error
	if errors.As(err, &classified) {
		body.Kind = string(classified.Kind)
		body.Identifiers = classified.Identifiers
	}
	event := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = log.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, r, status, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("failed to write response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid request body").
			WithCause(err)
	}
	return nil
}
