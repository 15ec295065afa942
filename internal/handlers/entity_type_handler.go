package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/services"
)

// EntityTypeHandler serves the entity type registry endpoints. These are
// administrative: deployments front them with operator-only routing.
type EntityTypeHandler struct {
	types  *services.EntityTypeService
	logger *logrus.Logger
}

// NewEntityTypeHandler creates a new EntityTypeHandler
func NewEntityTypeHandler(types *services.EntityTypeService, logger *logrus.Logger) *EntityTypeHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EntityTypeHandler{types: types, logger: logger}
}

type entityTypePayload struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	PluralName string   `json:"plural_name"`
	Table      string   `json:"table"`
	NameColumn string   `json:"name_column"`
	CodeColumn string   `json:"code_column,omitempty"`
	ChildTypes []string `json:"child_types,omitempty"`
	Active     bool     `json:"active"`
}

func toPayload(entityType *entities.EntityType) *entityTypePayload {
	return &entityTypePayload{
		Code:       entityType.Code,
		Name:       entityType.Name,
		PluralName: entityType.PluralName,
		Table:      entityType.Table,
		NameColumn: entityType.NameColumn,
		CodeColumn: entityType.CodeColumn,
		ChildTypes: entityType.ChildTypes,
		Active:     entityType.Active,
	}
}

func (p *entityTypePayload) toEntity() *entities.EntityType {
	return &entities.EntityType{
		Code:       p.Code,
		Name:       p.Name,
		PluralName: p.PluralName,
		Table:      p.Table,
		NameColumn: p.NameColumn,
		CodeColumn: p.CodeColumn,
		ChildTypes: p.ChildTypes,
		Active:     true,
	}
}

// Create handles POST /v1/entity-types
func (h *EntityTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload entityTypePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if err := h.types.CreateType(r.Context(), payload.toEntity()); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, &payload)
}

// Get handles GET /v1/entity-types/{code}
func (h *EntityTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	entityType, err := h.types.GetType(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toPayload(entityType))
}

// List handles GET /v1/entity-types
func (h *EntityTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	types, err := h.types.ListTypes(r.Context(), activeOnly)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	payloads := make([]*entityTypePayload, 0, len(types))
	for _, entityType := range types {
		payloads = append(payloads, toPayload(entityType))
	}
	respondJSON(w, http.StatusOK, payloads)
}

// Parents handles GET /v1/entity-types/{code}/parents. It lists the types
// declaring {code} as a permitted child, i.e. where instances of {code} can
// be linked beneath.
func (h *EntityTypeHandler) Parents(w http.ResponseWriter, r *http.Request) {
	parents, err := h.types.ListParentsOf(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	payloads := make([]*entityTypePayload, 0, len(parents))
	for _, entityType := range parents {
		payloads = append(payloads, toPayload(entityType))
	}
	respondJSON(w, http.StatusOK, payloads)
}

// Update handles PUT /v1/entity-types/{code}
func (h *EntityTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload entityTypePayload
	if !decodeBody(w, r, &payload) {
		return
	}
	payload.Code = mux.Vars(r)["code"]

	if err := h.types.UpdateType(r.Context(), payload.toEntity()); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &payload)
}

// Deactivate handles DELETE /v1/entity-types/{code}
func (h *EntityTypeHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.types.DeactivateType(r.Context(), mux.Vars(r)["code"]); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
