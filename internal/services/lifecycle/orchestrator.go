package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories/postgres"
	"github.com/kataoka/daicho/internal/services"
)

// TypeProvider supplies entity type metadata to the orchestrator.
type TypeProvider interface {
	GetActiveType(ctx context.Context, code string) (*entities.EntityType, error)
}

// Orchestrator coordinates the multi-table writes behind entity creation,
// update and deletion. Every operation runs inside a single database
// transaction: either all side tables (primary, registry, grants, links)
// are updated together, or none are.
type Orchestrator struct {
	db     *sql.DB
	types  TypeProvider
	logger *logrus.Logger
	newID  func() string
	now    func() time.Time
}

// NewOrchestrator creates a new lifecycle orchestrator
func NewOrchestrator(db *sql.DB, types TypeProvider, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		db:     db,
		types:  types,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// CreateRequest describes a new entity instance.
type CreateRequest struct {
	EntityType string                 // Entity type code
	CreatorID  string                 // Person creating the instance
	Data       map[string]interface{} // Columns for the primary table
	Parent     *entities.InstanceRef  // Optional containment parent
}

// CreateResult reports the outcome of a creation.
type CreateResult struct {
	InstanceID string
	Record     map[string]interface{}
}

// DeleteResult summarizes the side effects of a deletion.
type DeleteResult struct {
	LinksRemoved  int64
	GrantsRemoved int64
}

// CreateEntity creates an entity instance atomically: primary row,
// registry row, an owner grant for the creator's role, and the optional
// parent link all commit together.
func (o *Orchestrator) CreateEntity(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	entityType, err := o.types.GetActiveType(ctx, req.EntityType)
	if err != nil {
		return nil, err
	}
	if req.CreatorID == "" {
		return nil, fmt.Errorf("creator ID is required: %w", services.ErrInvalid)
	}

	if req.Parent != nil {
		if err := req.Parent.Validate(); err != nil {
			return nil, fmt.Errorf("%v: %w", err, services.ErrInvalid)
		}
		parentType, err := o.types.GetActiveType(ctx, req.Parent.Type)
		if err != nil {
			return nil, fmt.Errorf("parent type %s: %w", req.Parent.Type, err)
		}
		if !parentType.PermitsChild(req.EntityType) {
			return nil, fmt.Errorf("type %s does not declare %s as a child type: %w",
				req.Parent.Type, req.EntityType, services.ErrInvalid)
		}
	}

	instanceID := o.newID()
	record := &entities.InstanceRecord{
		Type:        req.EntityType,
		ID:          instanceID,
		DisplayName: stringField(req.Data, entityType.NameColumn),
		ShortCode:   stringField(req.Data, entityType.CodeColumn),
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, services.ErrInvalid)
	}

	err = database.WithinTx(ctx, o.db, func(tx *sql.Tx) error {
		primary := postgres.NewPrimaryStore(tx)
		registry := postgres.NewPostgresRegistryRepository(tx)
		links := postgres.NewPostgresLinkRepository(tx)
		grants := postgres.NewPostgresGrantRepository(tx)

		// The creator's effective role is their earliest membership.
		roles, err := links.Parents(ctx, entities.TypePerson, req.CreatorID, entities.TypeRole, entities.LinkMembership)
		if err != nil {
			return fmt.Errorf("failed to resolve creator role: %w", err)
		}
		if len(roles) == 0 {
			return fmt.Errorf("creator %s has no role membership: %w", req.CreatorID, services.ErrForbidden)
		}

		if err := primary.Insert(ctx, entityType.Table, instanceID, req.Data); err != nil {
			return err
		}
		if err := registry.Create(ctx, record); err != nil {
			return err
		}

		ownerGrant := &entities.PermissionGrant{
			RoleID:      roles[0],
			EntityType:  req.EntityType,
			InstanceID:  instanceID,
			Level:       entities.LevelOwner,
			Inheritance: entities.InheritNone,
		}
		if _, err := grants.Upsert(ctx, ownerGrant); err != nil {
			return err
		}

		if req.Parent != nil {
			link := &entities.InstanceLink{
				ParentType: req.Parent.Type,
				ParentID:   req.Parent.ID,
				ChildType:  req.EntityType,
				ChildID:    instanceID,
				Kind:       entities.LinkContains,
			}
			if err := links.Set(ctx, link); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"type":     req.EntityType,
		"instance": instanceID,
		"creator":  req.CreatorID,
	}).Info("entity created")

	result := make(map[string]interface{}, len(req.Data)+1)
	for col, value := range req.Data {
		result[col] = value
	}
	result["id"] = instanceID

	return &CreateResult{InstanceID: instanceID, Record: result}, nil
}

// UpdateEntity applies column updates to the primary row and keeps the
// registry's cached display name and short code in sync, atomically.
func (o *Orchestrator) UpdateEntity(ctx context.Context, typeCode, instanceID string, updates map[string]interface{}) (map[string]interface{}, error) {
	entityType, err := o.types.GetActiveType(ctx, typeCode)
	if err != nil {
		return nil, err
	}
	if instanceID == "" {
		return nil, fmt.Errorf("instance ID is required: %w", services.ErrInvalid)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no updates given: %w", services.ErrInvalid)
	}

	var record map[string]interface{}
	err = database.WithinTx(ctx, o.db, func(tx *sql.Tx) error {
		primary := postgres.NewPrimaryStore(tx)
		registry := postgres.NewPostgresRegistryRepository(tx)

		if err := primary.Update(ctx, entityType.Table, instanceID, updates); err != nil {
			return err
		}

		displayName := stringFieldPtr(updates, entityType.NameColumn)
		shortCode := stringFieldPtr(updates, entityType.CodeColumn)
		if displayName != nil || shortCode != nil {
			if err := registry.Sync(ctx, typeCode, instanceID, displayName, shortCode); err != nil {
				return err
			}
		}

		updated, err := primary.Get(ctx, entityType.Table, instanceID)
		if err != nil {
			return err
		}
		record = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"type":     typeCode,
		"instance": instanceID,
	}).Info("entity updated")

	return record, nil
}

// DeleteEntity deletes an instance and all infrastructure referring to it:
// the primary row (soft or hard), the registry row, every link where the
// instance is an endpoint, and every grant targeting it. A primary row
// whose registry row is already gone indicates corruption and aborts the
// transaction.
func (o *Orchestrator) DeleteEntity(ctx context.Context, typeCode, instanceID string, hard bool) (*DeleteResult, error) {
	entityType, err := o.types.GetActiveType(ctx, typeCode)
	if err != nil {
		return nil, err
	}
	if instanceID == "" {
		return nil, fmt.Errorf("instance ID is required: %w", services.ErrInvalid)
	}

	summary := &DeleteResult{}
	err = database.WithinTx(ctx, o.db, func(tx *sql.Tx) error {
		primary := postgres.NewPrimaryStore(tx)
		registry := postgres.NewPostgresRegistryRepository(tx)
		links := postgres.NewPostgresLinkRepository(tx)
		grants := postgres.NewPostgresGrantRepository(tx)

		if hard {
			if err := primary.HardDelete(ctx, entityType.Table, instanceID); err != nil {
				return err
			}
		} else {
			if err := primary.SoftDelete(ctx, entityType.Table, instanceID); err != nil {
				return err
			}
		}

		removed, err := registry.Delete(ctx, typeCode, instanceID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return fmt.Errorf("registry row missing for %s:%s: %w", typeCode, instanceID, services.ErrInconsistent)
		}

		linksRemoved, err := links.DeleteForInstance(ctx, typeCode, instanceID)
		if err != nil {
			return err
		}
		grantsRemoved, err := grants.DeleteForInstance(ctx, typeCode, instanceID)
		if err != nil {
			return err
		}

		summary.LinksRemoved = linksRemoved
		summary.GrantsRemoved = grantsRemoved
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"type":     typeCode,
		"instance": instanceID,
		"hard":     hard,
		"links":    summary.LinksRemoved,
		"grants":   summary.GrantsRemoved,
	}).Info("entity deleted")

	return summary, nil
}

// GetEntity reads the primary row of an instance.
func (o *Orchestrator) GetEntity(ctx context.Context, typeCode, instanceID string) (map[string]interface{}, error) {
	entityType, err := o.types.GetActiveType(ctx, typeCode)
	if err != nil {
		return nil, err
	}
	if instanceID == "" {
		return nil, fmt.Errorf("instance ID is required: %w", services.ErrInvalid)
	}

	primary := postgres.NewPrimaryStore(o.db)
	return primary.Get(ctx, entityType.Table, instanceID)
}

func stringField(data map[string]interface{}, column string) string {
	if column == "" {
		return ""
	}
	if value, ok := data[column].(string); ok {
		return value
	}
	return ""
}

func stringFieldPtr(data map[string]interface{}, column string) *string {
	if column == "" {
		return nil
	}
	if value, ok := data[column].(string); ok {
		return &value
	}
	return nil
}
