package entities

import (
	"fmt"
	"time"
)

// InstanceRef identifies one concrete record of an entity type by value.
// Infrastructure tables never hold foreign keys into business tables; all
// cross-references use (type code, instance id) pairs.
type InstanceRef struct {
	Type string // Entity type code (e.g. "project")
	ID   string // Opaque instance identifier
}

// String returns a string representation of the reference.
// Format: type:id
func (r InstanceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// Validate checks if the reference is usable.
func (r InstanceRef) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("entity type is required")
	}
	if r.ID == "" {
		return fmt.Errorf("instance ID is required")
	}
	return nil
}

// InstanceRecord is one registry row: a denormalized point-in-time lookup
// of an instance's display name and short code. Exactly one row exists per
// (type, id) pair that currently exists; the row is hard-deleted with the
// owning business record.
type InstanceRecord struct {
	Type        string // Entity type code
	ID          string // Instance identifier
	DisplayName string // Cached display name
	ShortCode   string // Cached short code (optional)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ref returns the instance reference for the record.
func (r *InstanceRecord) Ref() InstanceRef {
	return InstanceRef{Type: r.Type, ID: r.ID}
}

// Validate checks if the registry record is valid.
func (r *InstanceRecord) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("entity type is required")
	}
	if r.ID == "" {
		return fmt.Errorf("instance ID is required")
	}
	if r.ID == AllInstances {
		return fmt.Errorf("instance ID %q is reserved", AllInstances)
	}
	return nil
}
