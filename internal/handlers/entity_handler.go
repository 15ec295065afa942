package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/services/authorization"
	"github.com/kataoka/daicho/internal/services/lifecycle"
)

// LifecycleInterface is the orchestrator surface the handler depends on.
type LifecycleInterface interface {
	CreateEntity(ctx context.Context, req *lifecycle.CreateRequest) (*lifecycle.CreateResult, error)
	UpdateEntity(ctx context.Context, typeCode, instanceID string, updates map[string]interface{}) (map[string]interface{}, error)
	DeleteEntity(ctx context.Context, typeCode, instanceID string, hard bool) (*lifecycle.DeleteResult, error)
	GetEntity(ctx context.Context, typeCode, instanceID string) (map[string]interface{}, error)
}

// EntityHandler serves entity instance lifecycle endpoints. Every endpoint
// authorizes the caller before touching data: create requires a type-level
// create grant, reads require view, updates edit, deletions delete.
type EntityHandler struct {
	orchestrator LifecycleInterface
	resolver     authorization.ResolverInterface
	logger       *logrus.Logger
	recorded     func(operation string, err error)
}

// NewEntityHandler creates a new EntityHandler. The recorded callback, when
// non-nil, is invoked once per lifecycle operation.
func NewEntityHandler(
	orchestrator LifecycleInterface,
	resolver authorization.ResolverInterface,
	logger *logrus.Logger,
	recorded func(operation string, err error),
) *EntityHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EntityHandler{orchestrator: orchestrator, resolver: resolver, logger: logger, recorded: recorded}
}

func (h *EntityHandler) record(operation string, err error) {
	if h.recorded != nil {
		h.recorded(operation, err)
	}
}

// authorize checks the caller's level on the target and writes the
// response on failure. Denials are indistinguishable from each other.
func (h *EntityHandler) authorize(w http.ResponseWriter, r *http.Request, personID, entityType, instanceID string, required entities.Level) bool {
	allowed, err := h.resolver.Authorize(r.Context(), personID, entityType, instanceID, required)
	if err != nil {
		respondError(w, h.logger, err)
		return false
	}
	if !allowed {
		respondJSON(w, http.StatusForbidden, &errorResponse{Error: "forbidden"})
		return false
	}
	return true
}

type createEntityRequest struct {
	Data   map[string]interface{} `json:"data"`
	Parent *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"parent,omitempty"`
}

// Create handles POST /v1/entities/{type}
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}
	typeCode := mux.Vars(r)["type"]

	if !h.authorize(w, r, personID, typeCode, entities.AllInstances, entities.LevelCreate) {
		return
	}

	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	createReq := &lifecycle.CreateRequest{
		EntityType: typeCode,
		CreatorID:  personID,
		Data:       req.Data,
	}
	if req.Parent != nil {
		createReq.Parent = &entities.InstanceRef{Type: req.Parent.Type, ID: req.Parent.ID}
	}

	result, err := h.orchestrator.CreateEntity(r.Context(), createReq)
	h.record("create", err)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, result.Record)
}

// Get handles GET /v1/entities/{type}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	if !h.authorize(w, r, personID, vars["type"], vars["id"], entities.LevelView) {
		return
	}

	record, err := h.orchestrator.GetEntity(r.Context(), vars["type"], vars["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// Update handles PATCH /v1/entities/{type}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	if !h.authorize(w, r, personID, vars["type"], vars["id"], entities.LevelEdit) {
		return
	}

	var updates map[string]interface{}
	if !decodeBody(w, r, &updates) {
		return
	}

	record, err := h.orchestrator.UpdateEntity(r.Context(), vars["type"], vars["id"], updates)
	h.record("update", err)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

type deleteEntityResponse struct {
	LinksRemoved  int64 `json:"links_removed"`
	GrantsRemoved int64 `json:"grants_removed"`
}

// Delete handles DELETE /v1/entities/{type}/{id}
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	hard := r.URL.Query().Get("hard") == "true"

	if !h.authorize(w, r, personID, vars["type"], vars["id"], entities.LevelDelete) {
		return
	}

	summary, err := h.orchestrator.DeleteEntity(r.Context(), vars["type"], vars["id"], hard)
	h.record("delete", err)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &deleteEntityResponse{
		LinksRemoved:  summary.LinksRemoved,
		GrantsRemoved: summary.GrantsRemoved,
	})
}
