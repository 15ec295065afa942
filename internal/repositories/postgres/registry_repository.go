package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories"
)

// PostgresRegistryRepository implements RegistryRepository using PostgreSQL
type PostgresRegistryRepository struct {
	db database.Executor
}

// NewPostgresRegistryRepository creates a new PostgreSQL instance registry repository
func NewPostgresRegistryRepository(db database.Executor) repositories.RegistryRepository {
	return &PostgresRegistryRepository{db: db}
}

// Create inserts the registry row for a newly created instance
func (r *PostgresRegistryRepository) Create(ctx context.Context, record *entities.InstanceRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid registry record: %w", err)
	}

	query := `
		INSERT INTO entity_registry (entity_type, instance_id, display_name, short_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.Type, record.ID, record.DisplayName, record.ShortCode, time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registry row %s: %w", record.Ref(), repositories.ErrConflict)
		}
		return fmt.Errorf("failed to create registry row: %w", err)
	}

	return nil
}

// Get retrieves the registry row for an instance
func (r *PostgresRegistryRepository) Get(ctx context.Context, typeCode, instanceID string) (*entities.InstanceRecord, error) {
	query := `
		SELECT entity_type, instance_id, display_name, short_code, created_at, updated_at
		FROM entity_registry
		WHERE entity_type = $1 AND instance_id = $2
	`
	var record entities.InstanceRecord
	err := r.db.QueryRowContext(ctx, query, typeCode, instanceID).Scan(
		&record.Type, &record.ID, &record.DisplayName, &record.ShortCode,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("registry row %s:%s: %w", typeCode, instanceID, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registry row: %w", err)
	}

	return &record, nil
}

// ListByType retrieves all registry rows of one entity type
func (r *PostgresRegistryRepository) ListByType(ctx context.Context, typeCode string) ([]*entities.InstanceRecord, error) {
	query := `
		SELECT entity_type, instance_id, display_name, short_code, created_at, updated_at
		FROM entity_registry
		WHERE entity_type = $1
		ORDER BY display_name, instance_id
	`
	rows, err := r.db.QueryContext(ctx, query, typeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry rows: %w", err)
	}
	defer rows.Close()

	var records []*entities.InstanceRecord
	for rows.Next() {
		var record entities.InstanceRecord
		err := rows.Scan(
			&record.Type, &record.ID, &record.DisplayName, &record.ShortCode,
			&record.CreatedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registry row: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registry rows: %w", err)
	}

	return records, nil
}

// Sync updates the cached display name and/or short code. Nil fields are
// left untouched.
func (r *PostgresRegistryRepository) Sync(ctx context.Context, typeCode, instanceID string, displayName, shortCode *string) error {
	if displayName == nil && shortCode == nil {
		return nil
	}

	query := `
		UPDATE entity_registry
		SET display_name = COALESCE($3, display_name),
			short_code = COALESCE($4, short_code),
			updated_at = $5
		WHERE entity_type = $1 AND instance_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, typeCode, instanceID, displayName, shortCode, time.Now())
	if err != nil {
		return fmt.Errorf("failed to sync registry row: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("registry row %s:%s: %w", typeCode, instanceID, repositories.ErrNotFound)
	}

	return nil
}

// Delete hard-deletes the registry row
func (r *PostgresRegistryRepository) Delete(ctx context.Context, typeCode, instanceID string) (int64, error) {
	query := `DELETE FROM entity_registry WHERE entity_type = $1 AND instance_id = $2`
	result, err := r.db.ExecContext(ctx, query, typeCode, instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete registry row: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}
