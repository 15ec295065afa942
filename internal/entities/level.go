package entities

import "fmt"

// Level is a permission level on a target entity type or instance.
// Levels are ordered: a grant at a higher level implies every lower one.
type Level int

const (
	// LevelNone is the sentinel for "no access". It is never stored; it is
	// the result of resolution when no grant applies.
	LevelNone Level = -1

	LevelView       Level = 0
	LevelComment    Level = 1
	LevelContribute Level = 2
	LevelEdit       Level = 3
	LevelShare      Level = 4
	LevelDelete     Level = 5
	// LevelCreate is only meaningful at type level (the AllInstances
	// sentinel); it is never granted on a specific instance.
	LevelCreate Level = 6
	LevelOwner  Level = 7
)

// AllInstances is the reserved instance identifier meaning "every instance
// of this type". It is a concrete value rather than a nullable column so
// that all comparisons stay simple equality checks.
const AllInstances = "*"

var levelNames = map[Level]string{
	LevelNone:       "none",
	LevelView:       "view",
	LevelComment:    "comment",
	LevelContribute: "contribute",
	LevelEdit:       "edit",
	LevelShare:      "share",
	LevelDelete:     "delete",
	LevelCreate:     "create",
	LevelOwner:      "owner",
}

// ParseLevel converts a symbolic level name to its Level value.
func ParseLevel(name string) (Level, error) {
	for level, levelName := range levelNames {
		if levelName == name {
			return level, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown permission level: %q", name)
}

// String returns the symbolic name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether the level is a grantable level (view..owner).
func (l Level) Valid() bool {
	return l >= LevelView && l <= LevelOwner
}

// Satisfies reports whether the level meets the required level.
func (l Level) Satisfies(required Level) bool {
	return l >= required
}
