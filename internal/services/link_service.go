package services

import (
	"context"
	"fmt"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/repositories"
)

// LinkService manages the polymorphic links between instances. Link writes
// are validated against the entity type registry so that only declared
// parent/child pairings ever enter the link store; the read path trusts
// the store and never re-validates.
type LinkService struct {
	linkRepo repositories.LinkRepository
	types    *EntityTypeService
}

// NewLinkService creates a new LinkService
func NewLinkService(linkRepo repositories.LinkRepository, types *EntityTypeService) *LinkService {
	return &LinkService{linkRepo: linkRepo, types: types}
}

// SetLink creates a link after validating both endpoints against the type
// registry. Re-linking an identical pair is a no-op.
func (s *LinkService) SetLink(ctx context.Context, link *entities.InstanceLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}

	parentType, err := s.types.GetActiveType(ctx, link.ParentType)
	if err != nil {
		return fmt.Errorf("parent type %s: %w", link.ParentType, err)
	}
	if _, err := s.types.GetActiveType(ctx, link.ChildType); err != nil {
		return fmt.Errorf("child type %s: %w", link.ChildType, err)
	}

	switch link.Kind {
	case entities.LinkMembership:
		if link.ParentType != entities.TypeRole || link.ChildType != entities.TypePerson {
			return fmt.Errorf("membership links connect a role to a person, got %s: %w", link, ErrInvalid)
		}
	case entities.LinkContains:
		if !parentType.PermitsChild(link.ChildType) {
			return fmt.Errorf("type %s does not declare %s as a child type: %w", link.ParentType, link.ChildType, ErrInvalid)
		}
	}

	return s.linkRepo.Set(ctx, link)
}

// FindLinks retrieves links matching the filter
func (s *LinkService) FindLinks(ctx context.Context, filter *repositories.LinkFilter) ([]*entities.InstanceLink, error) {
	return s.linkRepo.Find(ctx, filter)
}

// GetChildren retrieves the child instance IDs of a parent for one child
// type and kind
func (s *LinkService) GetChildren(ctx context.Context, parentType, parentID, childType string, kind entities.LinkKind) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid link kind %q: %w", kind, ErrInvalid)
	}
	return s.linkRepo.Children(ctx, parentType, parentID, childType, kind)
}

// GetParents retrieves the parent instance IDs of a child for one parent
// type and kind
func (s *LinkService) GetParents(ctx context.Context, childType, childID, parentType string, kind entities.LinkKind) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid link kind %q: %w", kind, ErrInvalid)
	}
	return s.linkRepo.Parents(ctx, childType, childID, parentType, kind)
}

// DeleteLink removes one link
func (s *LinkService) DeleteLink(ctx context.Context, link *entities.InstanceLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	return s.linkRepo.Delete(ctx, link)
}
