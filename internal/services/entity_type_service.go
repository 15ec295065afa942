package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
	"github.com/kataoka/daicho/pkg/cache"
)

const typeCacheKeyPrefix = "entity_type:"

// EntityTypeService manages the entity type registry. Type metadata may be
// served from a process-local cache as a pure performance optimization;
// permission decisions never read the cache, only current database state.
type EntityTypeService struct {
	repo     repositories.EntityTypeRepository
	cache    cache.Cache // Optional; nil disables caching
	cacheTTL time.Duration
}

// NewEntityTypeService creates a new EntityTypeService
func NewEntityTypeService(repo repositories.EntityTypeRepository, c cache.Cache, cacheTTL time.Duration) *EntityTypeService {
	return &EntityTypeService{repo: repo, cache: c, cacheTTL: cacheTTL}
}

// GetType retrieves an entity type by code, consulting the cache first
func (s *EntityTypeService) GetType(ctx context.Context, code string) (*entities.EntityType, error) {
	if code == "" {
		return nil, fmt.Errorf("type code is required: %w", ErrInvalid)
	}

	if s.cache != nil {
		if cached, found := s.cache.Get(ctx, typeCacheKeyPrefix+code); found {
			if data, ok := cached.([]byte); ok {
				var entityType entities.EntityType
				if err := json.Unmarshal(data, &entityType); err == nil {
					return &entityType, nil
				}
				// Unreadable cache entries are dropped, not trusted.
				_ = s.cache.Delete(ctx, typeCacheKeyPrefix+code)
			}
		}
	}

	entityType, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(entityType); err == nil {
			_ = s.cache.Set(ctx, typeCacheKeyPrefix+code, data, s.cacheTTL)
		}
	}

	return entityType, nil
}

// GetActiveType retrieves an entity type and rejects deactivated ones
func (s *EntityTypeService) GetActiveType(ctx context.Context, code string) (*entities.EntityType, error) {
	entityType, err := s.GetType(ctx, code)
	if err != nil {
		return nil, err
	}
	if !entityType.Active {
		return nil, fmt.Errorf("entity type %s is deactivated: %w", code, repositories.ErrNotFound)
	}
	return entityType, nil
}

// CreateType registers a new entity type
func (s *EntityTypeService) CreateType(ctx context.Context, entityType *entities.EntityType) error {
	if err := entityType.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	return s.repo.Create(ctx, entityType)
}

// UpdateType replaces the mutable attributes of an entity type
func (s *EntityTypeService) UpdateType(ctx context.Context, entityType *entities.EntityType) error {
	if err := entityType.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	if err := s.repo.Update(ctx, entityType); err != nil {
		return err
	}
	s.invalidate(ctx, entityType.Code)
	return nil
}

// DeactivateType soft-deletes an entity type. Built-in types backing role
// membership cannot be deactivated.
func (s *EntityTypeService) DeactivateType(ctx context.Context, code string) error {
	if code == entities.TypeRole || code == entities.TypePerson {
		return fmt.Errorf("built-in type %s cannot be deactivated: %w", code, ErrInvalid)
	}
	if err := s.repo.Deactivate(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

// ListTypes retrieves all entity types
func (s *EntityTypeService) ListTypes(ctx context.Context, activeOnly bool) ([]*entities.EntityType, error) {
	return s.repo.List(ctx, activeOnly)
}

// ListParentsOf retrieves all types declaring code as a permitted child
func (s *EntityTypeService) ListParentsOf(ctx context.Context, code string) ([]*entities.EntityType, error) {
	if code == "" {
		return nil, fmt.Errorf("type code is required: %w", ErrInvalid)
	}
	return s.repo.ListParentsOf(ctx, code)
}

func (s *EntityTypeService) invalidate(ctx context.Context, code string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, typeCacheKeyPrefix+code)
	}
}
