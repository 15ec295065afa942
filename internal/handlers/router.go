package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers bundles every HTTP handler behind the router.
type Handlers struct {
	Authorization *AuthorizationHandler
	Entities      *EntityHandler
	EntityTypes   *EntityTypeHandler
	Links         *LinkHandler
	Grants        *GrantHandler
}

// NewRouter builds the HTTP route table. Middleware (metrics, logging) is
// attached by the caller via router.Use.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()

	// Resolution
	v1.HandleFunc("/authorize", h.Authorization.Authorize).Methods(http.MethodPost)
	v1.HandleFunc("/resolve", h.Authorization.Resolve).Methods(http.MethodPost)
	v1.HandleFunc("/access-filter", h.Authorization.AccessFilter).Methods(http.MethodPost)

	// Entity lifecycle
	v1.HandleFunc("/entities/{type}", h.Entities.Create).Methods(http.MethodPost)
	v1.HandleFunc("/entities/{type}/{id}", h.Entities.Get).Methods(http.MethodGet)
	v1.HandleFunc("/entities/{type}/{id}", h.Entities.Update).Methods(http.MethodPatch)
	v1.HandleFunc("/entities/{type}/{id}", h.Entities.Delete).Methods(http.MethodDelete)
	v1.HandleFunc("/entities/{type}/{id}/children/{child_type}", h.Links.Children).Methods(http.MethodGet)

	// Entity type registry
	v1.HandleFunc("/entity-types", h.EntityTypes.Create).Methods(http.MethodPost)
	v1.HandleFunc("/entity-types", h.EntityTypes.List).Methods(http.MethodGet)
	v1.HandleFunc("/entity-types/{code}", h.EntityTypes.Get).Methods(http.MethodGet)
	v1.HandleFunc("/entity-types/{code}/parents", h.EntityTypes.Parents).Methods(http.MethodGet)
	v1.HandleFunc("/entity-types/{code}", h.EntityTypes.Update).Methods(http.MethodPut)
	v1.HandleFunc("/entity-types/{code}", h.EntityTypes.Deactivate).Methods(http.MethodDelete)

	// Links
	v1.HandleFunc("/links", h.Links.Set).Methods(http.MethodPut)
	v1.HandleFunc("/links", h.Links.Delete).Methods(http.MethodDelete)

	// Grants
	v1.HandleFunc("/grants", h.Grants.Grant).Methods(http.MethodPut)
	v1.HandleFunc("/grants/{id}", h.Grants.Get).Methods(http.MethodGet)
	v1.HandleFunc("/grants/{id}", h.Grants.Revoke).Methods(http.MethodDelete)

	return router
}
