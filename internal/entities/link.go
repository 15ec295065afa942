package entities

import (
	"fmt"
	"time"
)

// LinkKind tags the relationship a link expresses. The kind is part of a
// link's identity: the same parent/child pair may carry different kinds.
type LinkKind string

const (
	// LinkContains is generic business-entity containment
	// (e.g. project contains task).
	LinkContains LinkKind = "contains"

	// LinkMembership links a role to a person member
	// (parent type "role", child type "person").
	LinkMembership LinkKind = "membership"
)

// Valid checks if the kind is one of the defined link kinds.
func (k LinkKind) Valid() bool {
	return k == LinkContains || k == LinkMembership
}

// InstanceLink is a directed edge from a parent instance to a child
// instance. Links are hard-deleted when either endpoint is deleted; there
// is no soft delete.
// Example: project:p1 -[contains]-> task:t9
type InstanceLink struct {
	ParentType string   // Parent entity type code
	ParentID   string   // Parent instance ID
	ChildType  string   // Child entity type code
	ChildID    string   // Child instance ID
	Kind       LinkKind // Relationship kind
	CreatedAt  time.Time
}

// Parent returns the parent endpoint of the link.
func (l *InstanceLink) Parent() InstanceRef {
	return InstanceRef{Type: l.ParentType, ID: l.ParentID}
}

// Child returns the child endpoint of the link.
func (l *InstanceLink) Child() InstanceRef {
	return InstanceRef{Type: l.ChildType, ID: l.ChildID}
}

// String returns a string representation of the link.
// Format: parent_type:parent_id-[kind]->child_type:child_id
func (l *InstanceLink) String() string {
	return fmt.Sprintf("%s:%s-[%s]->%s:%s",
		l.ParentType, l.ParentID, l.Kind, l.ChildType, l.ChildID)
}

// Validate checks if the link is valid.
func (l *InstanceLink) Validate() error {
	if l.ParentType == "" {
		return fmt.Errorf("parent type is required")
	}
	if l.ParentID == "" || l.ParentID == AllInstances {
		return fmt.Errorf("parent ID is required and must not be the all-instances sentinel")
	}
	if l.ChildType == "" {
		return fmt.Errorf("child type is required")
	}
	if l.ChildID == "" || l.ChildID == AllInstances {
		return fmt.Errorf("child ID is required and must not be the all-instances sentinel")
	}
	if !l.Kind.Valid() {
		return fmt.Errorf("invalid link kind: %q", l.Kind)
	}
	if l.ParentType == l.ChildType && l.ParentID == l.ChildID {
		return fmt.Errorf("link cannot point at itself")
	}
	return nil
}
