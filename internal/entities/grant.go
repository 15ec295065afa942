package entities

import (
	"fmt"
	"time"
)

// InheritanceMode controls how a grant on a parent instance propagates to
// instances linked beneath it.
type InheritanceMode string

const (
	// InheritNone means the grant applies only to its declared target.
	InheritNone InheritanceMode = "none"

	// InheritCascade applies the grant's level unmodified to every
	// descendant instance.
	InheritCascade InheritanceMode = "cascade"

	// InheritMapped applies a per-child-type level from the grant's child
	// level map, falling back to the ChildDefaultKey entry.
	InheritMapped InheritanceMode = "mapped"
)

// ChildDefaultKey is the fallback key in a mapped grant's child level map.
const ChildDefaultKey = "_default"

// PermissionGrant maps a grantee role to a permission level on a target
// entity type or instance. At most one grant exists per (role, type,
// instance) tuple; re-granting upserts the existing row.
type PermissionGrant struct {
	ID          string           // Grant identifier (UUID)
	RoleID      string           // Grantee role instance ID
	EntityType  string           // Target entity type code
	InstanceID  string           // Target instance ID, or AllInstances
	Level       Level            // Granted permission level
	Inheritance InheritanceMode  // How the grant propagates to descendants
	ChildLevels map[string]Level // Per-child-type levels (mapped mode only)
	Deny        bool             // Explicit deny: vetoes access regardless of other grants
	ExpiresAt   *time.Time       // Optional expiration; expired grants contribute nothing
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// String returns a string representation of the grant.
// Format: role:role_id@entity_type:instance_id=level[!deny]
func (g *PermissionGrant) String() string {
	s := fmt.Sprintf("role:%s@%s:%s=%s", g.RoleID, g.EntityType, g.InstanceID, g.Level)
	if g.Deny {
		s += "!deny"
	}
	return s
}

// Validate checks if the grant is valid.
func (g *PermissionGrant) Validate() error {
	if g.RoleID == "" {
		return fmt.Errorf("role ID is required")
	}
	if g.EntityType == "" {
		return fmt.Errorf("entity type is required")
	}
	if g.InstanceID == "" {
		return fmt.Errorf("instance ID is required (use %q for all instances)", AllInstances)
	}
	if !g.Level.Valid() {
		return fmt.Errorf("invalid permission level: %d", g.Level)
	}
	if g.Level == LevelCreate && g.InstanceID != AllInstances {
		return fmt.Errorf("create level is type-level only; instance-scoped create grants are not allowed")
	}
	switch g.Inheritance {
	case InheritNone, InheritCascade:
	case InheritMapped:
		if len(g.ChildLevels) == 0 {
			return fmt.Errorf("mapped inheritance requires a child level map")
		}
		for code, level := range g.ChildLevels {
			if code != ChildDefaultKey && !ValidIdentifier(code) {
				return fmt.Errorf("invalid child type code in level map: %q", code)
			}
			if !level.Valid() {
				return fmt.Errorf("invalid level %d for child type %q", level, code)
			}
		}
	default:
		return fmt.Errorf("unknown inheritance mode: %q", g.Inheritance)
	}
	return nil
}

// ExpiredAt reports whether the grant is expired at the given time.
func (g *PermissionGrant) ExpiredAt(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// LevelFor returns the level the grant contributes to a descendant of the
// given entity type, honoring the inheritance mode. The second return is
// false when the grant contributes nothing.
func (g *PermissionGrant) LevelFor(childType string) (Level, bool) {
	switch g.Inheritance {
	case InheritCascade:
		return g.Level, true
	case InheritMapped:
		if level, ok := g.ChildLevels[childType]; ok {
			return level, true
		}
		if level, ok := g.ChildLevels[ChildDefaultKey]; ok {
			return level, true
		}
		return LevelNone, false
	default:
		return LevelNone, false
	}
}
