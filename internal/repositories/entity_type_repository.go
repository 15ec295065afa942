package repositories

import (
	"context"

	"github.com/kataoka/daicho/internal/entities"
)

// EntityTypeRepository defines the interface for entity type registry access
type EntityTypeRepository interface {
	// Create registers a new entity type
	Create(ctx context.Context, entityType *entities.EntityType) error

	// Update replaces the mutable attributes of an entity type
	Update(ctx context.Context, entityType *entities.EntityType) error

	// GetByCode retrieves an entity type by its unique code
	GetByCode(ctx context.Context, code string) (*entities.EntityType, error)

	// List retrieves all entity types; activeOnly filters deactivated ones
	List(ctx context.Context, activeOnly bool) ([]*entities.EntityType, error)

	// ListParentsOf retrieves all types declaring code as a permitted child
	ListParentsOf(ctx context.Context, code string) ([]*entities.EntityType, error)

	// Deactivate soft-deletes an entity type
	Deactivate(ctx context.Context, code string) error
}
