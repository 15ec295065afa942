package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/services"
	"github.com/kataoka/daicho/internal/services/authorization"
)

// GrantHandler serves permission grant endpoints. Granting or revoking on
// a target requires share level on it.
type GrantHandler struct {
	grants   *services.GrantService
	resolver authorization.ResolverInterface
	logger   *logrus.Logger
}

// NewGrantHandler creates a new GrantHandler
func NewGrantHandler(grants *services.GrantService, resolver authorization.ResolverInterface, logger *logrus.Logger) *GrantHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GrantHandler{grants: grants, resolver: resolver, logger: logger}
}

type grantPayload struct {
	ID          string            `json:"id,omitempty"`
	RoleID      string            `json:"role_id"`
	EntityType  string            `json:"entity_type"`
	InstanceID  string            `json:"instance_id"`
	Level       string            `json:"level"`
	Inheritance string            `json:"inheritance,omitempty"`
	ChildLevels map[string]string `json:"child_levels,omitempty"`
	Deny        bool              `json:"deny,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

func (p *grantPayload) toEntity() (*entities.PermissionGrant, error) {
	level, err := entities.ParseLevel(p.Level)
	if err != nil {
		return nil, err
	}

	inheritance := entities.InheritanceMode(p.Inheritance)
	if p.Inheritance == "" {
		inheritance = entities.InheritNone
	}

	var childLevels map[string]entities.Level
	if len(p.ChildLevels) > 0 {
		childLevels = make(map[string]entities.Level, len(p.ChildLevels))
		for childType, name := range p.ChildLevels {
			childLevel, err := entities.ParseLevel(name)
			if err != nil {
				return nil, err
			}
			childLevels[childType] = childLevel
		}
	}

	return &entities.PermissionGrant{
		ID:          p.ID,
		RoleID:      p.RoleID,
		EntityType:  p.EntityType,
		InstanceID:  p.InstanceID,
		Level:       level,
		Inheritance: inheritance,
		ChildLevels: childLevels,
		Deny:        p.Deny,
		ExpiresAt:   p.ExpiresAt,
	}, nil
}

func fromEntity(grant *entities.PermissionGrant) *grantPayload {
	payload := &grantPayload{
		ID:          grant.ID,
		RoleID:      grant.RoleID,
		EntityType:  grant.EntityType,
		InstanceID:  grant.InstanceID,
		Level:       grant.Level.String(),
		Inheritance: string(grant.Inheritance),
		Deny:        grant.Deny,
		ExpiresAt:   grant.ExpiresAt,
	}
	if len(grant.ChildLevels) > 0 {
		payload.ChildLevels = make(map[string]string, len(grant.ChildLevels))
		for childType, level := range grant.ChildLevels {
			payload.ChildLevels[childType] = level.String()
		}
	}
	return payload
}

type grantResponse struct {
	ID string `json:"id"`
}

// Grant handles PUT /v1/grants
func (h *GrantHandler) Grant(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	var payload grantPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	grant, err := payload.toEntity()
	if err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}
	if err := grant.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	allowed, err := h.resolver.Authorize(r.Context(), personID, grant.EntityType, grant.InstanceID, entities.LevelShare)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if !allowed {
		respondJSON(w, http.StatusForbidden, &errorResponse{Error: "forbidden"})
		return
	}

	id, err := h.grants.Grant(r.Context(), grant)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &grantResponse{ID: id})
}

// Get handles GET /v1/grants/{id}
func (h *GrantHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	grant, err := h.grants.GetGrant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, fromEntity(grant))
}

// Revoke handles DELETE /v1/grants/{id}
func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	grant, err := h.grants.GetGrant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	allowed, err := h.resolver.Authorize(r.Context(), personID, grant.EntityType, grant.InstanceID, entities.LevelShare)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if !allowed {
		respondJSON(w, http.StatusForbidden, &errorResponse{Error: "forbidden"})
		return
	}

	if err := h.grants.Revoke(r.Context(), grant.ID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
