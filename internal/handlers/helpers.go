package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/repositories"
	"github.com/kataoka/daicho/internal/services"
)

// personHeader carries the authenticated caller's person ID. Authentication
// itself happens upstream (gateway or reverse proxy); this service only
// resolves what that person may do.
const personHeader = "X-Person-ID"

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps service errors to HTTP statuses. Authorization denials
// all collapse into one generic 403: the response never reveals whether the
// target exists or which grant was missing.
func respondError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, services.ErrInvalid):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
		message = "forbidden"
	case errors.Is(err, repositories.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, repositories.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, services.ErrInconsistent):
		logger.WithError(err).Error("infrastructure inconsistency detected")
	default:
		logger.WithError(err).Error("request failed")
	}

	respondJSON(w, status, &errorResponse{Error: message})
}

// callerID extracts the authenticated person ID, or writes a 401 and
// returns false.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	personID := r.Header.Get(personHeader)
	if personID == "" {
		respondJSON(w, http.StatusUnauthorized, &errorResponse{Error: "missing " + personHeader + " header"})
		return "", false
	}
	return personID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
