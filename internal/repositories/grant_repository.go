package repositories

import (
	"context"
	"time"

	"github.com/kataoka/daicho/internal/entities"
)

// GrantFilter defines filter criteria for querying permission grants
type GrantFilter struct {
	RoleIDs     []string  // Filter by grantee roles (optional)
	EntityType  string    // Filter by target entity type (optional)
	InstanceIDs []string  // Filter by target instance IDs, including the sentinel (optional)
	ActiveAt    time.Time // Exclude grants expired at this time (zero = include all)
}

// GrantRepository defines the interface for permission grant access
type GrantRepository interface {
	// Upsert creates or replaces the grant keyed by (role, type, instance)
	// and returns the grant ID
	Upsert(ctx context.Context, grant *entities.PermissionGrant) (string, error)

	// GetByID retrieves a grant by its identifier
	GetByID(ctx context.Context, id string) (*entities.PermissionGrant, error)

	// Find retrieves grants matching the filter
	Find(ctx context.Context, filter *GrantFilter) ([]*entities.PermissionGrant, error)

	// Delete removes a grant by its identifier
	Delete(ctx context.Context, id string) error

	// DeleteForInstance removes every grant targeting the instance;
	// returns the number of rows removed
	DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error)
}
