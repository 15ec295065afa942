package entities

import (
	"fmt"
	"regexp"
	"time"
)

// Built-in entity type codes. The link store uses them for role membership
// resolution; they are seeded by the initial migration and cannot be
// deactivated.
const (
	TypeRole   = "role"
	TypePerson = "person"
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidIdentifier reports whether s is usable as a type code, table name or
// column name. Primary-table access builds SQL from these values, so
// anything outside the pattern is rejected before it reaches a query.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// EntityType describes one kind of business record (e.g. "project",
// "task"). Types are registered by administrators and soft-deactivated
// rather than removed, because historical links and grants may still
// reference the code.
type EntityType struct {
	Code        string    // Unique type code (e.g. "project")
	Name        string    // Display name (e.g. "Project")
	PluralName  string    // Plural display name (e.g. "Projects")
	Table       string    // Primary business table holding instances
	NameColumn  string    // Column cached into the registry as display name
	CodeColumn  string    // Column cached into the registry as short code (optional)
	ChildTypes  []string  // Ordered permitted child type codes
	Active      bool      // Deactivated types reject new instances and links
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks if the entity type definition is valid.
func (t *EntityType) Validate() error {
	if !ValidIdentifier(t.Code) {
		return fmt.Errorf("invalid type code: %q", t.Code)
	}
	if t.Name == "" {
		return fmt.Errorf("display name is required")
	}
	if !ValidIdentifier(t.Table) {
		return fmt.Errorf("invalid table name: %q", t.Table)
	}
	if t.NameColumn != "" && !ValidIdentifier(t.NameColumn) {
		return fmt.Errorf("invalid name column: %q", t.NameColumn)
	}
	if t.CodeColumn != "" && !ValidIdentifier(t.CodeColumn) {
		return fmt.Errorf("invalid code column: %q", t.CodeColumn)
	}
	for _, child := range t.ChildTypes {
		if !ValidIdentifier(child) {
			return fmt.Errorf("invalid child type code: %q", child)
		}
	}
	return nil
}

// PermitsChild reports whether the type declares code as a permitted child
// type.
func (t *EntityType) PermitsChild(code string) bool {
	for _, child := range t.ChildTypes {
		if child == code {
			return true
		}
	}
	return false
}
