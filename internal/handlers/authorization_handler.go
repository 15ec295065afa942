package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/services/authorization"
)

// AuthorizationHandler serves permission checks and access filters.
type AuthorizationHandler struct {
	resolver authorization.ResolverInterface
	filters  authorization.FilterBuilderInterface
	logger   *logrus.Logger
	decided  func(allowed bool)
}

// NewAuthorizationHandler creates a new AuthorizationHandler. The decided
// callback, when non-nil, is invoked once per authorization decision.
func NewAuthorizationHandler(
	resolver authorization.ResolverInterface,
	filters authorization.FilterBuilderInterface,
	logger *logrus.Logger,
	decided func(allowed bool),
) *AuthorizationHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthorizationHandler{resolver: resolver, filters: filters, logger: logger, decided: decided}
}

type authorizeRequest struct {
	EntityType string `json:"entity_type"`
	InstanceID string `json:"instance_id"`
	Level      string `json:"level"`
}

type authorizeResponse struct {
	Allowed bool `json:"allowed"`
}

// Authorize handles POST /v1/authorize
func (h *AuthorizationHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req authorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.EntityType == "" || req.InstanceID == "" {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: "entity_type and instance_id are required"})
		return
	}
	level, err := entities.ParseLevel(req.Level)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	allowed, err := h.resolver.Authorize(r.Context(), personID, req.EntityType, req.InstanceID, level)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if h.decided != nil {
		h.decided(allowed)
	}

	respondJSON(w, http.StatusOK, &authorizeResponse{Allowed: allowed})
}

type resolveResponse struct {
	Level string `json:"level"`
}

// Resolve handles POST /v1/resolve: it returns the caller's effective
// level on a target instead of a yes/no answer.
func (h *AuthorizationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req authorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.EntityType == "" || req.InstanceID == "" {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: "entity_type and instance_id are required"})
		return
	}

	level, err := h.resolver.Resolve(r.Context(), personID, req.EntityType, req.InstanceID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &resolveResponse{Level: level.String()})
}

type accessFilterRequest struct {
	EntityType string `json:"entity_type"`
	Level      string `json:"level"`
}

type accessFilterResponse struct {
	Decision    string   `json:"decision"`
	InstanceIDs []string `json:"instance_ids,omitempty"`
}

// AccessFilter handles POST /v1/access-filter
func (h *AuthorizationHandler) AccessFilter(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req accessFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.EntityType == "" {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: "entity_type is required"})
		return
	}
	level, err := entities.ParseLevel(req.Level)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	filter, err := h.filters.BuildAccessFilter(r.Context(), personID, req.EntityType, level)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &accessFilterResponse{
		Decision:    string(filter.Decision),
		InstanceIDs: filter.InstanceIDs,
	})
}
