package authorization

import (
	"context"
	"fmt"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
	"github.com/sirupsen/logrus"
)

const (
	// MaxTraversalDepth bounds the ancestor/descendant walk over instance
	// links. Links are validated against the type registry on creation, so
	// real hierarchies are shallow; the bound guarantees termination and
	// bounded latency even if a cyclic link is ever erroneously created.
	MaxTraversalDepth = 32
)

// ResolverInterface defines the interface for permission resolution
type ResolverInterface interface {
	Authorize(ctx context.Context, personID, entityType, instanceID string, required entities.Level) (bool, error)
	Resolve(ctx context.Context, personID, entityType, instanceID string) (entities.Level, error)
	MemberRoles(ctx context.Context, personID string) ([]string, error)
}

// Resolver aggregates permission grants from every applicable source
// (direct, role-sentinel, inherited) and resolves a person's effective
// level on a target. It is a pure read path: it never mutates grants.
type Resolver struct {
	linkRepo  repositories.LinkRepository
	grantRepo repositories.GrantRepository
	logger    *logrus.Logger
	now       func() time.Time
}

// NewResolver creates a new Resolver
func NewResolver(
	linkRepo repositories.LinkRepository,
	grantRepo repositories.GrantRepository,
	logger *logrus.Logger,
) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		linkRepo:  linkRepo,
		grantRepo: grantRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// MemberRoles returns the IDs of every role the person is a member of
func (r *Resolver) MemberRoles(ctx context.Context, personID string) ([]string, error) {
	if personID == "" {
		return nil, fmt.Errorf("person ID is required")
	}

	roles, err := r.linkRepo.Parents(ctx, entities.TypePerson, personID, entities.TypeRole, entities.LinkMembership)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve memberships: %w", err)
	}

	return roles, nil
}

// Authorize reports whether the person holds at least the required level on
// the target. Denied access is a normal false return, never an error.
func (r *Resolver) Authorize(ctx context.Context, personID, entityType, instanceID string, required entities.Level) (bool, error) {
	if !required.Valid() {
		return false, fmt.Errorf("invalid required level: %d", required)
	}

	res, err := r.resolve(ctx, personID, entityType, instanceID)
	if err != nil {
		return false, err
	}
	if res.denied {
		return false, nil
	}

	return res.level.Satisfies(required), nil
}

// Resolve returns the person's effective level on the target, or LevelNone
// when no grant applies or an explicit deny vetoes access.
func (r *Resolver) Resolve(ctx context.Context, personID, entityType, instanceID string) (entities.Level, error) {
	res, err := r.resolve(ctx, personID, entityType, instanceID)
	if err != nil {
		return entities.LevelNone, err
	}
	if res.denied {
		return entities.LevelNone, nil
	}
	return res.level, nil
}

type resolution struct {
	level  entities.Level
	denied bool
}

func (r *Resolver) resolve(ctx context.Context, personID, entityType, instanceID string) (*resolution, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if instanceID == "" {
		return nil, fmt.Errorf("instance ID is required (use %q for type-level checks)", entities.AllInstances)
	}

	roles, err := r.MemberRoles(ctx, personID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		// No roles means no grants can apply: the default-deny state.
		return &resolution{level: entities.LevelNone}, nil
	}

	now := r.now()

	// Direct and type-sentinel grants on the target itself.
	targets := []string{entities.AllInstances}
	if instanceID != entities.AllInstances {
		targets = []string{instanceID, entities.AllInstances}
	}
	grants, err := r.grantRepo.Find(ctx, &repositories.GrantFilter{
		RoleIDs:     roles,
		EntityType:  entityType,
		InstanceIDs: targets,
		ActiveAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", err)
	}

	level := entities.LevelNone
	for _, grant := range grants {
		if grant.Deny {
			// Explicit deny always wins, regardless of any other grant.
			r.logger.WithFields(logrus.Fields{
				"person": personID,
				"target": entityType + ":" + instanceID,
				"grant":  grant.ID,
			}).Debug("authorization vetoed by explicit deny")
			return &resolution{denied: true}, nil
		}
		if grant.Level > level {
			level = grant.Level
		}
	}

	// Inherited grants on ancestor instances.
	if instanceID != entities.AllInstances {
		inherited, err := r.inheritedLevel(ctx, roles, entityType, instanceID, now)
		if err != nil {
			return nil, err
		}
		if inherited > level {
			level = inherited
		}
	}

	r.logger.WithFields(logrus.Fields{
		"person": personID,
		"target": entityType + ":" + instanceID,
		"level":  level.String(),
	}).Debug("resolved effective level")

	return &resolution{level: level}, nil
}

// inheritedLevel walks the link graph upward from the target instance and
// collects the levels contributed by cascade and mapped grants held on
// ancestor instances. The walk is iterative with a visited set and a depth
// bound so cyclic links cannot loop it forever.
func (r *Resolver) inheritedLevel(
	ctx context.Context,
	roles []string,
	entityType, instanceID string,
	now time.Time,
) (entities.Level, error) {
	level := entities.LevelNone

	start := entities.InstanceRef{Type: entityType, ID: instanceID}
	visited := map[entities.InstanceRef]bool{start: true}
	frontier := []entities.InstanceRef{start}

	for depth := 0; depth < MaxTraversalDepth && len(frontier) > 0; depth++ {
		var next []entities.InstanceRef

		for _, ref := range frontier {
			parents, err := r.linkRepo.ParentRefs(ctx, ref.Type, ref.ID, entities.LinkContains)
			if err != nil {
				return entities.LevelNone, fmt.Errorf("failed to read parent links: %w", err)
			}

			for _, parent := range parents {
				if visited[parent] {
					continue
				}
				visited[parent] = true
				next = append(next, parent)

				grants, err := r.grantRepo.Find(ctx, &repositories.GrantFilter{
					RoleIDs:     roles,
					EntityType:  parent.Type,
					InstanceIDs: []string{parent.ID, entities.AllInstances},
					ActiveAt:    now,
				})
				if err != nil {
					return entities.LevelNone, fmt.Errorf("failed to read ancestor grants: %w", err)
				}

				for _, grant := range grants {
					if grant.Deny {
						// Ancestor denies veto only their own target; they
						// simply contribute nothing to descendants.
						continue
					}
					if contributed, ok := grant.LevelFor(entityType); ok && contributed > level {
						level = contributed
					}
				}
			}
		}

		frontier = next
	}

	return level, nil
}
