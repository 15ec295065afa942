package authorization

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
)

// FilterDecision classifies an access filter result.
type FilterDecision string

const (
	// DecisionAllowAll means the person may access every instance of the
	// type at the required level; callers can skip per-row filtering.
	DecisionAllowAll FilterDecision = "allow_all"

	// DecisionDenyAll means no instance is accessible.
	DecisionDenyAll FilterDecision = "deny_all"

	// DecisionSubset means only the listed instance IDs are accessible.
	DecisionSubset FilterDecision = "subset"
)

// AccessFilter is a composable predicate over instance IDs, built once per
// list query so callers can push authorization into a bulk query instead of
// checking row by row.
type AccessFilter struct {
	Decision    FilterDecision
	InstanceIDs []string // Sorted; populated only for DecisionSubset
}

// Allows reports whether the filter admits the instance ID.
func (f *AccessFilter) Allows(instanceID string) bool {
	switch f.Decision {
	case DecisionAllowAll:
		return true
	case DecisionSubset:
		idx := sort.SearchStrings(f.InstanceIDs, instanceID)
		return idx < len(f.InstanceIDs) && f.InstanceIDs[idx] == instanceID
	default:
		return false
	}
}

// FilterBuilderInterface defines the interface for building access filters
type FilterBuilderInterface interface {
	BuildAccessFilter(ctx context.Context, personID, entityType string, required entities.Level) (*AccessFilter, error)
}

// FilterBuilder computes the set of instances of one type that a person
// may access at a required level.
type FilterBuilder struct {
	linkRepo     repositories.LinkRepository
	grantRepo    repositories.GrantRepository
	registryRepo repositories.RegistryRepository
	resolver     *Resolver
	now          func() time.Time
}

// NewFilterBuilder creates a new FilterBuilder
func NewFilterBuilder(
	linkRepo repositories.LinkRepository,
	grantRepo repositories.GrantRepository,
	registryRepo repositories.RegistryRepository,
	resolver *Resolver,
) *FilterBuilder {
	return &FilterBuilder{
		linkRepo:     linkRepo,
		grantRepo:    grantRepo,
		registryRepo: registryRepo,
		resolver:     resolver,
		now:          time.Now,
	}
}

// BuildAccessFilter resolves the person's access to instances of the given
// type into a filter: uniformly granted access yields AllowAll, no access
// yields DenyAll, and anything in between yields the explicit ID set.
func (b *FilterBuilder) BuildAccessFilter(ctx context.Context, personID, entityType string, required entities.Level) (*AccessFilter, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if !required.Valid() {
		return nil, fmt.Errorf("invalid required level: %d", required)
	}

	roles, err := b.resolver.MemberRoles(ctx, personID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return &AccessFilter{Decision: DecisionDenyAll}, nil
	}

	now := b.now()

	// All grants held by the roles on the target type, any instance.
	grants, err := b.grantRepo.Find(ctx, &repositories.GrantFilter{
		RoleIDs:    roles,
		EntityType: entityType,
		ActiveAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", err)
	}

	denied := map[string]bool{}
	typeWide := false
	allowed := map[string]bool{}

	for _, grant := range grants {
		if grant.Deny {
			if grant.InstanceID == entities.AllInstances {
				// A type-wide deny vetoes every instance.
				return &AccessFilter{Decision: DecisionDenyAll}, nil
			}
			denied[grant.InstanceID] = true
			continue
		}
		if !grant.Level.Satisfies(required) {
			continue
		}
		if grant.InstanceID == entities.AllInstances {
			typeWide = true
		} else {
			allowed[grant.InstanceID] = true
		}
	}

	if typeWide && len(denied) == 0 {
		return &AccessFilter{Decision: DecisionAllowAll}, nil
	}

	if typeWide {
		// Type-wide allowance with instance-scoped denies: the universe of
		// existing instances comes from the registry.
		records, err := b.registryRepo.ListByType(ctx, entityType)
		if err != nil {
			return nil, fmt.Errorf("failed to list registry rows: %w", err)
		}
		for _, record := range records {
			if !denied[record.ID] {
				allowed[record.ID] = true
			}
		}
		return subsetFilter(allowed), nil
	}

	// Inherited access: cascade/mapped grants admit every descendant
	// instance of the target type. The granting type may be the target type
	// itself when types self-nest.
	if err := b.collectInherited(ctx, roles, entityType, required, now, denied, allowed); err != nil {
		return nil, err
	}

	for id := range denied {
		delete(allowed, id)
	}

	return subsetFilter(allowed), nil
}

// collectInherited adds to allowed every target-type instance reachable
// below an ancestor grant whose inheritance contributes at least the
// required level.
func (b *FilterBuilder) collectInherited(
	ctx context.Context,
	roles []string,
	entityType string,
	required entities.Level,
	now time.Time,
	denied map[string]bool,
	allowed map[string]bool,
) error {
	grants, err := b.grantRepo.Find(ctx, &repositories.GrantFilter{
		RoleIDs:  roles,
		ActiveAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to read role grants: %w", err)
	}

	for _, grant := range grants {
		if grant.Deny {
			continue
		}
		contributed, ok := grant.LevelFor(entityType)
		if !ok || !contributed.Satisfies(required) {
			continue
		}

		var start []entities.InstanceRef
		if grant.InstanceID == entities.AllInstances {
			// A sentinel ancestor grant reaches descendants of every
			// instance of the granted type.
			links, err := b.linkRepo.Find(ctx, &repositories.LinkFilter{
				ParentType: grant.EntityType,
				Kind:       entities.LinkContains,
			})
			if err != nil {
				return fmt.Errorf("failed to read links: %w", err)
			}
			for _, link := range links {
				start = append(start, link.Parent())
			}
		} else {
			start = []entities.InstanceRef{{Type: grant.EntityType, ID: grant.InstanceID}}
		}

		if err := b.collectDescendants(ctx, start, entityType, allowed); err != nil {
			return err
		}
	}

	return nil
}

// collectDescendants walks the link graph downward from the start refs and
// records every reachable instance of the target type. Same bounded,
// visited-set traversal as the resolver's ancestor walk.
func (b *FilterBuilder) collectDescendants(
	ctx context.Context,
	start []entities.InstanceRef,
	targetType string,
	out map[string]bool,
) error {
	visited := map[entities.InstanceRef]bool{}
	frontier := []entities.InstanceRef{}
	for _, ref := range start {
		if !visited[ref] {
			visited[ref] = true
			frontier = append(frontier, ref)
		}
	}

	for depth := 0; depth < MaxTraversalDepth && len(frontier) > 0; depth++ {
		var next []entities.InstanceRef

		for _, ref := range frontier {
			children, err := b.linkRepo.ChildRefs(ctx, ref.Type, ref.ID, entities.LinkContains)
			if err != nil {
				return fmt.Errorf("failed to read child links: %w", err)
			}

			for _, child := range children {
				if visited[child] {
					continue
				}
				visited[child] = true
				next = append(next, child)

				if child.Type == targetType {
					out[child.ID] = true
				}
			}
		}

		frontier = next
	}

	return nil
}

func subsetFilter(allowed map[string]bool) *AccessFilter {
	if len(allowed) == 0 {
		return &AccessFilter{Decision: DecisionDenyAll}
	}

	ids := make([]string, 0, len(allowed))
	for id := range allowed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &AccessFilter{Decision: DecisionSubset, InstanceIDs: ids}
}
