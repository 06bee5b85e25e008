package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"planning/internal/apperr"
	"planning/internal/auth"
	"planning/internal/event"
	"planning/internal/logging"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps an error to a status and a generic message. Internals are
// logged, never echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		logging.HTTP().Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg, Fields: apperr.FieldsOf(err)})
}

func statusFor(err error) (int, string) {
	switch {
	case apperr.KindOf(err) == apperr.KindValidation:
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, apperr.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, event.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, event.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, "email already used"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrFederatedDisabled):
		return http.StatusNotImplemented, "federated sign-in disabled"
	case apperr.KindOf(err) == apperr.KindAuth:
		return http.StatusUnauthorized, "authentication failed"
	}
	return http.StatusInternalServerError, "server error"
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.NewValidationError(map[string]string{"body": "bad json"})
	}
	return nil
}
