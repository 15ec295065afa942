package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
	"github.com/kataoka/daicho/pkg/cache"
)

// mockEntityTypeRepository is an in-memory EntityTypeRepository for tests.
type mockEntityTypeRepository struct {
	types    map[string]*entities.EntityType
	getCalls int
}

func newMockEntityTypeRepository(types ...*entities.EntityType) *mockEntityTypeRepository {
	m := &mockEntityTypeRepository{types: map[string]*entities.EntityType{}}
	for _, entityType := range types {
		m.types[entityType.Code] = entityType
	}
	return m
}

func (m *mockEntityTypeRepository) Create(ctx context.Context, entityType *entities.EntityType) error {
	if _, exists := m.types[entityType.Code]; exists {
		return fmt.Errorf("type %s: %w", entityType.Code, repositories.ErrConflict)
	}
	m.types[entityType.Code] = entityType
	return nil
}

func (m *mockEntityTypeRepository) Update(ctx context.Context, entityType *entities.EntityType) error {
	if _, exists := m.types[entityType.Code]; !exists {
		return fmt.Errorf("type %s: %w", entityType.Code, repositories.ErrNotFound)
	}
	m.types[entityType.Code] = entityType
	return nil
}

func (m *mockEntityTypeRepository) GetByCode(ctx context.Context, code string) (*entities.EntityType, error) {
	m.getCalls++
	if entityType, ok := m.types[code]; ok {
		return entityType, nil
	}
	return nil, fmt.Errorf("type %s: %w", code, repositories.ErrNotFound)
}

func (m *mockEntityTypeRepository) List(ctx context.Context, activeOnly bool) ([]*entities.EntityType, error) {
	var result []*entities.EntityType
	for _, entityType := range m.types {
		if activeOnly && !entityType.Active {
			continue
		}
		result = append(result, entityType)
	}
	return result, nil
}

func (m *mockEntityTypeRepository) ListParentsOf(ctx context.Context, code string) ([]*entities.EntityType, error) {
	var result []*entities.EntityType
	for _, entityType := range m.types {
		if entityType.PermitsChild(code) {
			result = append(result, entityType)
		}
	}
	return result, nil
}

func (m *mockEntityTypeRepository) Deactivate(ctx context.Context, code string) error {
	entityType, ok := m.types[code]
	if !ok {
		return fmt.Errorf("type %s: %w", code, repositories.ErrNotFound)
	}
	entityType.Active = false
	return nil
}

// mockLinkRepository records Set/Delete calls for tests.
type mockLinkRepository struct {
	links []*entities.InstanceLink
}

func (m *mockLinkRepository) Set(ctx context.Context, link *entities.InstanceLink) error {
	m.links = append(m.links, link)
	return nil
}

func (m *mockLinkRepository) Find(ctx context.Context, filter *repositories.LinkFilter) ([]*entities.InstanceLink, error) {
	return m.links, nil
}

func (m *mockLinkRepository) Children(ctx context.Context, parentType, parentID, childType string, kind entities.LinkKind) ([]string, error) {
	var ids []string
	for _, link := range m.links {
		if link.ParentType == parentType && link.ParentID == parentID &&
			link.ChildType == childType && link.Kind == kind {
			ids = append(ids, link.ChildID)
		}
	}
	return ids, nil
}

func (m *mockLinkRepository) Parents(ctx context.Context, childType, childID, parentType string, kind entities.LinkKind) ([]string, error) {
	var ids []string
	for _, link := range m.links {
		if link.ChildType == childType && link.ChildID == childID &&
			link.ParentType == parentType && link.Kind == kind {
			ids = append(ids, link.ParentID)
		}
	}
	return ids, nil
}

func (m *mockLinkRepository) ParentRefs(ctx context.Context, childType, childID string, kind entities.LinkKind) ([]entities.InstanceRef, error) {
	return nil, nil
}

func (m *mockLinkRepository) ChildRefs(ctx context.Context, parentType, parentID string, kind entities.LinkKind) ([]entities.InstanceRef, error) {
	return nil, nil
}

func (m *mockLinkRepository) Delete(ctx context.Context, link *entities.InstanceLink) error {
	for i, existing := range m.links {
		if existing.String() == link.String() {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("link %s: %w", link, repositories.ErrNotFound)
}

func (m *mockLinkRepository) DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error) {
	return 0, nil
}

// mockGrantRepository records grants for tests.
type mockGrantRepository struct {
	grants map[string]*entities.PermissionGrant
}

func newMockGrantRepository() *mockGrantRepository {
	return &mockGrantRepository{grants: map[string]*entities.PermissionGrant{}}
}

func (m *mockGrantRepository) Upsert(ctx context.Context, grant *entities.PermissionGrant) (string, error) {
	if grant.ID == "" {
		grant.ID = fmt.Sprintf("grant-%d", len(m.grants)+1)
	}
	m.grants[grant.ID] = grant
	return grant.ID, nil
}

func (m *mockGrantRepository) GetByID(ctx context.Context, id string) (*entities.PermissionGrant, error) {
	if grant, ok := m.grants[id]; ok {
		return grant, nil
	}
	return nil, fmt.Errorf("grant %s: %w", id, repositories.ErrNotFound)
}

func (m *mockGrantRepository) Find(ctx context.Context, filter *repositories.GrantFilter) ([]*entities.PermissionGrant, error) {
	var result []*entities.PermissionGrant
	for _, grant := range m.grants {
		result = append(result, grant)
	}
	return result, nil
}

func (m *mockGrantRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.grants[id]; !ok {
		return fmt.Errorf("grant %s: %w", id, repositories.ErrNotFound)
	}
	delete(m.grants, id)
	return nil
}

func (m *mockGrantRepository) DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error) {
	return 0, nil
}

// countingCache wraps a map and counts operations for cache tests.
type countingCache struct {
	entries map[string]interface{}
	sets    int
	deletes int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[string]interface{}{}}
}

func (c *countingCache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, ok := c.entries[key]
	return value, ok
}

func (c *countingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *countingCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	c.deletes++
	return nil
}

func (c *countingCache) Clear(ctx context.Context) error {
	c.entries = map[string]interface{}{}
	return nil
}

func (c *countingCache) Close() error { return nil }

func (c *countingCache) Metrics() *cache.Metrics { return &cache.Metrics{} }

func builtinTypes() []*entities.EntityType {
	return []*entities.EntityType{
		{Code: entities.TypeRole, Name: "Role", Table: "roles", NameColumn: "name",
			ChildTypes: []string{entities.TypePerson}, Active: true},
		{Code: entities.TypePerson, Name: "Person", Table: "people", NameColumn: "full_name", Active: true},
	}
}
