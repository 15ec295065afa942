package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/services"
	"github.com/kataoka/daicho/internal/services/authorization"
)

// LinkHandler serves instance link endpoints. Linking two instances
// requires share level on the parent.
type LinkHandler struct {
	links    *services.LinkService
	resolver authorization.ResolverInterface
	logger   *logrus.Logger
}

// NewLinkHandler creates a new LinkHandler
func NewLinkHandler(links *services.LinkService, resolver authorization.ResolverInterface, logger *logrus.Logger) *LinkHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LinkHandler{links: links, resolver: resolver, logger: logger}
}

type linkPayload struct {
	ParentType string `json:"parent_type"`
	ParentID   string `json:"parent_id"`
	ChildType  string `json:"child_type"`
	ChildID    string `json:"child_id"`
	Kind       string `json:"kind"`
}

func (p *linkPayload) toEntity() *entities.InstanceLink {
	return &entities.InstanceLink{
		ParentType: p.ParentType,
		ParentID:   p.ParentID,
		ChildType:  p.ChildType,
		ChildID:    p.ChildID,
		Kind:       entities.LinkKind(p.Kind),
	}
}

func (h *LinkHandler) authorizeParent(w http.ResponseWriter, r *http.Request, personID string, link *entities.InstanceLink) bool {
	allowed, err := h.resolver.Authorize(r.Context(), personID, link.ParentType, link.ParentID, entities.LevelShare)
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

// Set handles PUT /v1/links
func (h *LinkHandler) Set(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	var payload linkPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	link := payload.toEntity()
	if err := link.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	if !h.authorizeParent(w, r, personID, link) {
		return
	}

	if err := h.links.SetLink(r.Context(), link); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// Delete handles DELETE /v1/links
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}

	var payload linkPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	link := payload.toEntity()
	if err := link.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, &errorResponse{Error: err.Error()})
		return
	}

	if !h.authorizeParent(w, r, personID, link) {
		return
	}

	if err := h.links.DeleteLink(r.Context(), link); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

type childrenResponse struct {
	ChildIDs []string `json:"child_ids"`
}

// Children handles GET /v1/entities/{type}/{id}/children/{child_type}
func (h *LinkHandler) Children(w http.ResponseWriter, r *http.Request) {
	personID, ok := callerID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	allowed, err := h.resolver.Authorize(r.Context(), personID, vars["type"], vars["id"], entities.LevelView)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if !allowed {
		respondJSON(w, http.StatusForbidden, &errorResponse{Error: "forbidden"})
		return
	}

	children, err := h.links.GetChildren(r.Context(), vars["type"], vars["id"], vars["child_type"], entities.LinkContains)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, &childrenResponse{ChildIDs: children})
}
