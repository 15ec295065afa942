package authorization

import (
	"context"
	"fmt"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
)

// mockLinkRepository is an in-memory LinkRepository for tests.
type mockLinkRepository struct {
	links []*entities.InstanceLink
	err   error
}

func (m *mockLinkRepository) Set(ctx context.Context, link *entities.InstanceLink) error {
	if m.err != nil {
		return m.err
	}
	m.links = append(m.links, link)
	return nil
}

func (m *mockLinkRepository) Find(ctx context.Context, filter *repositories.LinkFilter) ([]*entities.InstanceLink, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*entities.InstanceLink
	for _, link := range m.links {
		if filter.ParentType != "" && link.ParentType != filter.ParentType {
			continue
		}
		if filter.ParentID != "" && link.ParentID != filter.ParentID {
			continue
		}
		if filter.ChildType != "" && link.ChildType != filter.ChildType {
			continue
		}
		if filter.ChildID != "" && link.ChildID != filter.ChildID {
			continue
		}
		if filter.Kind != "" && link.Kind != filter.Kind {
			continue
		}
		result = append(result, link)
	}
	return result, nil
}

func (m *mockLinkRepository) Children(ctx context.Context, parentType, parentID, childType string, kind entities.LinkKind) ([]string, error) {
	links, err := m.Find(ctx, &repositories.LinkFilter{
		ParentType: parentType, ParentID: parentID, ChildType: childType, Kind: kind,
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, link := range links {
		ids = append(ids, link.ChildID)
	}
	return ids, nil
}

func (m *mockLinkRepository) Parents(ctx context.Context, childType, childID, parentType string, kind entities.LinkKind) ([]string, error) {
	links, err := m.Find(ctx, &repositories.LinkFilter{
		ParentType: parentType, ChildType: childType, ChildID: childID, Kind: kind,
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, link := range links {
		ids = append(ids, link.ParentID)
	}
	return ids, nil
}

func (m *mockLinkRepository) ParentRefs(ctx context.Context, childType, childID string, kind entities.LinkKind) ([]entities.InstanceRef, error) {
	links, err := m.Find(ctx, &repositories.LinkFilter{
		ChildType: childType, ChildID: childID, Kind: kind,
	})
	if err != nil {
		return nil, err
	}
	var refs []entities.InstanceRef
	for _, link := range links {
		refs = append(refs, link.Parent())
	}
	return refs, nil
}

func (m *mockLinkRepository) ChildRefs(ctx context.Context, parentType, parentID string, kind entities.LinkKind) ([]entities.InstanceRef, error) {
	links, err := m.Find(ctx, &repositories.LinkFilter{
		ParentType: parentType, ParentID: parentID, Kind: kind,
	})
	if err != nil {
		return nil, err
	}
	var refs []entities.InstanceRef
	for _, link := range links {
		refs = append(refs, link.Child())
	}
	return refs, nil
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
	var kept []*entities.InstanceLink
	var removed int64
	for _, link := range m.links {
		if (link.ParentType == typeCode && link.ParentID == instanceID) ||
			(link.ChildType == typeCode && link.ChildID == instanceID) {
			removed++
			continue
		}
		kept = append(kept, link)
	}
	m.links = kept
	return removed, nil
}

// mockGrantRepository is an in-memory GrantRepository for tests.
type mockGrantRepository struct {
	grants []*entities.PermissionGrant
	err    error
}

func (m *mockGrantRepository) Upsert(ctx context.Context, grant *entities.PermissionGrant) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	for i, existing := range m.grants {
		if existing.RoleID == grant.RoleID &&
			existing.EntityType == grant.EntityType &&
			existing.InstanceID == grant.InstanceID {
			grant.ID = existing.ID
			m.grants[i] = grant
			return grant.ID, nil
		}
	}
	if grant.ID == "" {
		grant.ID = fmt.Sprintf("grant-%d", len(m.grants)+1)
	}
	m.grants = append(m.grants, grant)
	return grant.ID, nil
}

func (m *mockGrantRepository) GetByID(ctx context.Context, id string) (*entities.PermissionGrant, error) {
	for _, grant := range m.grants {
		if grant.ID == id {
			return grant, nil
		}
	}
	return nil, fmt.Errorf("grant %s: %w", id, repositories.ErrNotFound)
}

func (m *mockGrantRepository) Find(ctx context.Context, filter *repositories.GrantFilter) ([]*entities.PermissionGrant, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*entities.PermissionGrant
	for _, grant := range m.grants {
		if len(filter.RoleIDs) > 0 && !containsString(filter.RoleIDs, grant.RoleID) {
			continue
		}
		if filter.EntityType != "" && grant.EntityType != filter.EntityType {
			continue
		}
		if len(filter.InstanceIDs) > 0 && !containsString(filter.InstanceIDs, grant.InstanceID) {
			continue
		}
		if !filter.ActiveAt.IsZero() && grant.ExpiredAt(filter.ActiveAt) {
			continue
		}
		result = append(result, grant)
	}
	return result, nil
}

func (m *mockGrantRepository) Delete(ctx context.Context, id string) error {
	for i, grant := range m.grants {
		if grant.ID == id {
			m.grants = append(m.grants[:i], m.grants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("grant %s: %w", id, repositories.ErrNotFound)
}

func (m *mockGrantRepository) DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error) {
	var kept []*entities.PermissionGrant
	var removed int64
	for _, grant := range m.grants {
		if grant.EntityType == typeCode && grant.InstanceID == instanceID {
			removed++
			continue
		}
		kept = append(kept, grant)
	}
	m.grants = kept
	return removed, nil
}

// mockRegistryRepository is an in-memory RegistryRepository for tests.
type mockRegistryRepository struct {
	records []*entities.InstanceRecord
}

func (m *mockRegistryRepository) Create(ctx context.Context, record *entities.InstanceRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *mockRegistryRepository) Get(ctx context.Context, typeCode, instanceID string) (*entities.InstanceRecord, error) {
	for _, record := range m.records {
		if record.Type == typeCode && record.ID == instanceID {
			return record, nil
		}
	}
	return nil, fmt.Errorf("instance %s:%s: %w", typeCode, instanceID, repositories.ErrNotFound)
}

func (m *mockRegistryRepository) ListByType(ctx context.Context, typeCode string) ([]*entities.InstanceRecord, error) {
	var result []*entities.InstanceRecord
	for _, record := range m.records {
		if record.Type == typeCode {
			result = append(result, record)
		}
	}
	return result, nil
}

func (m *mockRegistryRepository) Sync(ctx context.Context, typeCode, instanceID string, displayName, shortCode *string) error {
	record, err := m.Get(ctx, typeCode, instanceID)
	if err != nil {
		return err
	}
	if displayName != nil {
		record.DisplayName = *displayName
	}
	if shortCode != nil {
		record.ShortCode = *shortCode
	}
	return nil
}

func (m *mockRegistryRepository) Delete(ctx context.Context, typeCode, instanceID string) (int64, error) {
	for i, record := range m.records {
		if record.Type == typeCode && record.ID == instanceID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func membership(roleID, personID string) *entities.InstanceLink {
	return &entities.InstanceLink{
		ParentType: entities.TypeRole,
		ParentID:   roleID,
		ChildType:  entities.TypePerson,
		ChildID:    personID,
		Kind:       entities.LinkMembership,
	}
}

func containment(parentType, parentID, childType, childID string) *entities.InstanceLink {
	return &entities.InstanceLink{
		ParentType: parentType,
		ParentID:   parentID,
		ChildType:  childType,
		ChildID:    childID,
		Kind:       entities.LinkContains,
	}
}
