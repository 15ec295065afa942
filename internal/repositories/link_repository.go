package repositories

import (
	"context"

	"github.com/kataoka/daicho/internal/entities"
)

// LinkFilter defines filter criteria for querying instance links
type LinkFilter struct {
	ParentType string            // Filter by parent type (optional)
	ParentID   string            // Filter by parent ID (optional)
	ChildType  string            // Filter by child type (optional)
	ChildID    string            // Filter by child ID (optional)
	Kind       entities.LinkKind // Filter by relationship kind (optional)
}

// LinkRepository defines the interface for the polymorphic link store
type LinkRepository interface {
	// Set creates a link. The insert is idempotent: an identical
	// four-tuple+kind is a no-op.
	Set(ctx context.Context, link *entities.InstanceLink) error

	// Find retrieves links matching the filter
	Find(ctx context.Context, filter *LinkFilter) ([]*entities.InstanceLink, error)

	// Children retrieves the child instance IDs of a parent, restricted to
	// one child type and kind
	Children(ctx context.Context, parentType, parentID, childType string, kind entities.LinkKind) ([]string, error)

	// Parents retrieves the parent instance IDs of a child, restricted to
	// one parent type and kind, ordered by link creation time
	Parents(ctx context.Context, childType, childID, parentType string, kind entities.LinkKind) ([]string, error)

	// ParentRefs retrieves every parent endpoint of a child for the given
	// kind, regardless of parent type
	ParentRefs(ctx context.Context, childType, childID string, kind entities.LinkKind) ([]entities.InstanceRef, error)

	// ChildRefs retrieves every child endpoint of a parent for the given
	// kind, regardless of child type
	ChildRefs(ctx context.Context, parentType, parentID string, kind entities.LinkKind) ([]entities.InstanceRef, error)

	// Delete removes one link
	Delete(ctx context.Context, link *entities.InstanceLink) error

	// DeleteForInstance removes every link where the instance appears as
	// either parent or child; returns the number of rows removed
	DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error)
}
