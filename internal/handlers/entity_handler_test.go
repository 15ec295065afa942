package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kataoka/daicho/internal/entities"
)

func newEntityTestRouter(orchestrator *stubLifecycle, resolver *stubResolver) http.Handler {
	handler := NewEntityHandler(orchestrator, resolver, nil, nil)
	links := NewLinkHandler(nil, resolver, nil)
	return NewRouter(&Handlers{
		Authorization: NewAuthorizationHandler(resolver, &stubFilterBuilder{}, nil, nil),
		Entities:      handler,
		EntityTypes:   NewEntityTypeHandler(nil, nil),
		Links:         links,
		Grants:        NewGrantHandler(nil, resolver, nil),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, personID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if personID != "" {
		req.Header.Set(personHeader, personID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEntityHandler_Create(t *testing.T) {
	orchestrator := &stubLifecycle{}
	resolver := &stubResolver{levels: map[string]entities.Level{
		stubKey("alice", "task", entities.AllInstances): entities.LevelCreate,
	}}
	router := newEntityTestRouter(orchestrator, resolver)

	rec := doJSON(t, router, http.MethodPost, "/v1/entities/task", "alice", map[string]interface{}{
		"data":   map[string]interface{}{"title": "Ship it"},
		"parent": map[string]string{"type": "project", "id": "p1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "new-id", record["id"])

	require.NotNil(t, orchestrator.createReq)
	assert.Equal(t, "alice", orchestrator.createReq.CreatorID)
	assert.Equal(t, "task", orchestrator.createReq.EntityType)
	require.NotNil(t, orchestrator.createReq.Parent)
	assert.Equal(t, "p1", orchestrator.createReq.Parent.ID)
}

func TestEntityHandler_Create_RequiresTypeLevelGrant(t *testing.T) {
	orchestrator := &stubLifecycle{}
	// Edit on one instance is not a create grant on the type.
	resolver := &stubResolver{levels: map[string]entities.Level{
		stubKey("alice", "task", "t1"): entities.LevelEdit,
	}}
	router := newEntityTestRouter(orchestrator, resolver)

	rec := doJSON(t, router, http.MethodPost, "/v1/entities/task", "alice", map[string]interface{}{
		"data": map[string]interface{}{"title": "x"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, orchestrator.createReq)
}

func TestEntityHandler_Get(t *testing.T) {
	orchestrator := &stubLifecycle{}
	resolver := &stubResolver{levels: map[string]entities.Level{
		stubKey("alice", "task", "t1"): entities.LevelView,
	}}
	router := newEntityTestRouter(orchestrator, resolver)

	rec := doJSON(t, router, http.MethodGet, "/v1/entities/task/t1", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Alpha", record["name"])

	// Viewers of one instance cannot read another.
	rec = doJSON(t, router, http.MethodGet, "/v1/entities/task/t2", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEntityHandler_Update_RequiresEdit(t *testing.T) {
	orchestrator := &stubLifecycle{}
	resolver := &stubResolver{levels: map[string]entities.Level{
		stubKey("alice", "task", "t1"): entities.LevelView,
		stubKey("bob", "task", "t1"):   entities.LevelEdit,
	}}
	router := newEntityTestRouter(orchestrator, resolver)

	rec := doJSON(t, router, http.MethodPatch, "/v1/entities/task/t1", "alice", map[string]interface{}{
		"title": "Renamed",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, orchestrator.updated)

	rec = doJSON(t, router, http.MethodPatch, "/v1/entities/task/t1", "bob", map[string]interface{}{
		"title": "Renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", orchestrator.updated["title"])
}

func TestEntityHandler_Delete(t *testing.T) {
	orchestrator := &stubLifecycle{}
	resolver := &stubResolver{levels: map[string]entities.Level{
		stubKey("alice", "task", "t1"): entities.LevelOwner,
	}}
	router := newEntityTestRouter(orchestrator, resolver)

	rec := doJSON(t, router, http.MethodDelete, "/v1/entities/task/t1?hard=true", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp deleteEntityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.LinksRemoved)
	assert.Equal(t, int64(1), resp.GrantsRemoved)
	assert.Equal(t, []string{"task:t1"}, orchestrator.deleted)
	assert.True(t, orchestrator.hardUsed)
}

func TestEntityHandler_MissingIdentity(t *testing.T) {
	router := newEntityTestRouter(&stubLifecycle{}, &stubResolver{})

	rec := doJSON(t, router, http.MethodGet, "/v1/entities/task/t1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
