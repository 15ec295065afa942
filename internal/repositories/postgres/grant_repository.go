package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories"
	"github.com/lib/pq"
)

// PostgresGrantRepository implements GrantRepository using PostgreSQL
type PostgresGrantRepository struct {
	db database.Executor
}

// NewPostgresGrantRepository creates a new PostgreSQL grant repository
func NewPostgresGrantRepository(db database.Executor) repositories.GrantRepository {
	return &PostgresGrantRepository{db: db}
}

// Upsert creates or replaces the grant keyed by (role, type, instance).
// The unique constraint on the tuple is what makes re-granting safe under
// concurrency; there is never more than one row per target.
func (r *PostgresGrantRepository) Upsert(ctx context.Context, grant *entities.PermissionGrant) (string, error) {
	if err := grant.Validate(); err != nil {
		return "", fmt.Errorf("invalid grant: %w", err)
	}

	var childLevels interface{}
	if len(grant.ChildLevels) > 0 {
		data, err := json.Marshal(grant.ChildLevels)
		if err != nil {
			return "", fmt.Errorf("failed to marshal child levels: %w", err)
		}
		childLevels = data
	}

	id := grant.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO permission_grants (
			id, role_id, entity_type, instance_id, level, inheritance,
			child_levels, deny, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (role_id, entity_type, instance_id)
		DO UPDATE SET
			level = EXCLUDED.level,
			inheritance = EXCLUDED.inheritance,
			child_levels = EXCLUDED.child_levels,
			deny = EXCLUDED.deny,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	var storedID string
	err := r.db.QueryRowContext(ctx, query,
		id, grant.RoleID, grant.EntityType, grant.InstanceID,
		int(grant.Level), string(grant.Inheritance), childLevels,
		grant.Deny, grant.ExpiresAt, time.Now(),
	).Scan(&storedID)
	if err != nil {
		return "", fmt.Errorf("failed to upsert grant: %w", err)
	}

	return storedID, nil
}

// GetByID retrieves a grant by its identifier
func (r *PostgresGrantRepository) GetByID(ctx context.Context, id string) (*entities.PermissionGrant, error) {
	query := grantSelect + ` WHERE id = $1`
	grant, err := scanGrant(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grant %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	return grant, nil
}

// Find retrieves grants matching the filter
func (r *PostgresGrantRepository) Find(ctx context.Context, filter *repositories.GrantFilter) ([]*entities.PermissionGrant, error) {
	query := grantSelect + ` WHERE TRUE`
	args := []interface{}{}
	argIdx := 1

	// Build dynamic WHERE clause based on filter
	if filter != nil {
		if len(filter.RoleIDs) > 0 {
			query += fmt.Sprintf(" AND role_id = ANY($%d)", argIdx)
			args = append(args, pq.Array(filter.RoleIDs))
			argIdx++
		}
		if filter.EntityType != "" {
			query += fmt.Sprintf(" AND entity_type = $%d", argIdx)
			args = append(args, filter.EntityType)
			argIdx++
		}
		if len(filter.InstanceIDs) > 0 {
			query += fmt.Sprintf(" AND instance_id = ANY($%d)", argIdx)
			args = append(args, pq.Array(filter.InstanceIDs))
			argIdx++
		}
		if !filter.ActiveAt.IsZero() {
			query += fmt.Sprintf(" AND (expires_at IS NULL OR expires_at > $%d)", argIdx)
			args = append(args, filter.ActiveAt)
			argIdx++
		}
	}

	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find grants: %w", err)
	}
	defer rows.Close()

	var grants []*entities.PermissionGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}

// Delete removes a grant by its identifier
func (r *PostgresGrantRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM permission_grants WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("grant %s: %w", id, repositories.ErrNotFound)
	}

	return nil
}

// DeleteForInstance removes every grant targeting the instance
func (r *PostgresGrantRepository) DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error) {
	query := `DELETE FROM permission_grants WHERE entity_type = $1 AND instance_id = $2`
	result, err := r.db.ExecContext(ctx, query, typeCode, instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete grants for instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}

const grantSelect = `
	SELECT id, role_id, entity_type, instance_id, level, inheritance,
		child_levels, deny, expires_at, created_at, updated_at
	FROM permission_grants
`

func scanGrant(row rowScanner) (*entities.PermissionGrant, error) {
	var grant entities.PermissionGrant
	var level int
	var inheritance string
	var childLevels []byte
	var expiresAt sql.NullTime

	err := row.Scan(
		&grant.ID, &grant.RoleID, &grant.EntityType, &grant.InstanceID,
		&level, &inheritance, &childLevels, &grant.Deny, &expiresAt,
		&grant.CreatedAt, &grant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	grant.Level = entities.Level(level)
	grant.Inheritance = entities.InheritanceMode(inheritance)
	if len(childLevels) > 0 {
		if err := json.Unmarshal(childLevels, &grant.ChildLevels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal child levels: %w", err)
		}
	}
	if expiresAt.Valid {
		grant.ExpiresAt = &expiresAt.Time
	}

	return &grant, nil
}
