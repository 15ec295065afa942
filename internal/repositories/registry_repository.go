package repositories

import (
	"context"

	"github.com/kataoka/daicho/internal/entities"
)

// RegistryRepository defines the interface for the instance registry: one
// denormalized row per existing instance of any entity type.
type RegistryRepository interface {
	// Create inserts the registry row for a newly created instance
	Create(ctx context.Context, record *entities.InstanceRecord) error

	// Get retrieves the registry row for an instance
	Get(ctx context.Context, typeCode, instanceID string) (*entities.InstanceRecord, error)

	// ListByType retrieves all registry rows of one entity type
	ListByType(ctx context.Context, typeCode string) ([]*entities.InstanceRecord, error)

	// Sync updates the cached display name and/or short code. Nil fields
	// are left untouched.
	Sync(ctx context.Context, typeCode, instanceID string, displayName, shortCode *string) error

	// Delete hard-deletes the registry row; returns the number of rows
	// removed so callers can detect a missing row.
	Delete(ctx context.Context, typeCode, instanceID string) (int64, error)
}
