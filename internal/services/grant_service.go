package services

import (
	"context"
	"fmt"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
)

// GrantService manages permission grants. A grant is keyed by
// (role, entity type, instance): granting again for the same key replaces
// the previous grant rather than accumulating.
type GrantService struct {
	grantRepo repositories.GrantRepository
	types     *EntityTypeService
}

// NewGrantService creates a new GrantService
func NewGrantService(grantRepo repositories.GrantRepository, types *EntityTypeService) *GrantService {
	return &GrantService{grantRepo: grantRepo, types: types}
}

// Grant creates or replaces a permission grant and returns its ID
func (s *GrantService) Grant(ctx context.Context, grant *entities.PermissionGrant) (string, error) {
	if err := grant.Validate(); err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrInvalid)
	}

	if _, err := s.types.GetActiveType(ctx, grant.EntityType); err != nil {
		return "", fmt.Errorf("target type %s: %w", grant.EntityType, err)
	}
	for childType := range grant.ChildLevels {
		if childType == entities.ChildDefaultKey {
			continue
		}
		if _, err := s.types.GetActiveType(ctx, childType); err != nil {
			return "", fmt.Errorf("mapped child type %s: %w", childType, err)
		}
	}

	return s.grantRepo.Upsert(ctx, grant)
}

// GetGrant retrieves a grant by its identifier
func (s *GrantService) GetGrant(ctx context.Context, id string) (*entities.PermissionGrant, error) {
	if id == "" {
		return nil, fmt.Errorf("grant ID is required: %w", ErrInvalid)
	}
	return s.grantRepo.GetByID(ctx, id)
}

// FindGrants retrieves grants matching the filter
func (s *GrantService) FindGrants(ctx context.Context, filter *repositories.GrantFilter) ([]*entities.PermissionGrant, error) {
	return s.grantRepo.Find(ctx, filter)
}

// Revoke removes a grant by its identifier
func (s *GrantService) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("grant ID is required: %w", ErrInvalid)
	}
	return s.grantRepo.Delete(ctx, id)
}
