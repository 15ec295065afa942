package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories"
	"github.com/lib/pq"
)

// PostgresEntityTypeRepository implements EntityTypeRepository using PostgreSQL
type PostgresEntityTypeRepository struct {
	db database.Executor
}

// NewPostgresEntityTypeRepository creates a new PostgreSQL entity type repository
func NewPostgresEntityTypeRepository(db database.Executor) repositories.EntityTypeRepository {
	return &PostgresEntityTypeRepository{db: db}
}

// Create registers a new entity type
func (r *PostgresEntityTypeRepository) Create(ctx context.Context, entityType *entities.EntityType) error {
	if err := entityType.Validate(); err != nil {
		return fmt.Errorf("invalid entity type: %w", err)
	}

	query := `
		INSERT INTO entity_types (
			code, name, plural_name, table_name, name_column, code_column,
			child_types, active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		entityType.Code, entityType.Name, entityType.PluralName,
		entityType.Table, entityType.NameColumn, entityType.CodeColumn,
		pq.Array(entityType.ChildTypes), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entity type %s: %w", entityType.Code, repositories.ErrConflict)
		}
		return fmt.Errorf("failed to create entity type: %w", err)
	}

	return nil
}

// Update replaces the mutable attributes of an entity type
func (r *PostgresEntityTypeRepository) Update(ctx context.Context, entityType *entities.EntityType) error {
	if err := entityType.Validate(); err != nil {
		return fmt.Errorf("invalid entity type: %w", err)
	}

	query := `
		UPDATE entity_types
		SET name = $2, plural_name = $3, table_name = $4, name_column = $5,
			code_column = $6, child_types = $7, updated_at = $8
		WHERE code = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		entityType.Code, entityType.Name, entityType.PluralName,
		entityType.Table, entityType.NameColumn, entityType.CodeColumn,
		pq.Array(entityType.ChildTypes), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update entity type: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity type %s: %w", entityType.Code, repositories.ErrNotFound)
	}

	return nil
}

// GetByCode retrieves an entity type by its unique code
func (r *PostgresEntityTypeRepository) GetByCode(ctx context.Context, code string) (*entities.EntityType, error) {
	query := `
		SELECT code, name, plural_name, table_name, name_column, code_column,
			child_types, active, created_at, updated_at
		FROM entity_types
		WHERE code = $1
	`
	entityType, err := scanEntityType(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity type %s: %w", code, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity type: %w", err)
	}

	return entityType, nil
}

// List retrieves all entity types; activeOnly filters deactivated ones
func (r *PostgresEntityTypeRepository) List(ctx context.Context, activeOnly bool) ([]*entities.EntityType, error) {
	query := `
		SELECT code, name, plural_name, table_name, name_column, code_column,
			child_types, active, created_at, updated_at
		FROM entity_types
	`
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY code"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity types: %w", err)
	}
	defer rows.Close()

	return collectEntityTypes(rows)
}

// ListParentsOf retrieves all types declaring code as a permitted child
func (r *PostgresEntityTypeRepository) ListParentsOf(ctx context.Context, code string) ([]*entities.EntityType, error) {
	query := `
		SELECT code, name, plural_name, table_name, name_column, code_column,
			child_types, active, created_at, updated_at
		FROM entity_types
		WHERE $1 = ANY(child_types)
		ORDER BY code
	`
	rows, err := r.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list parent types: %w", err)
	}
	defer rows.Close()

	return collectEntityTypes(rows)
}

// Deactivate soft-deletes an entity type
func (r *PostgresEntityTypeRepository) Deactivate(ctx context.Context, code string) error {
	query := `UPDATE entity_types SET active = FALSE, updated_at = $2 WHERE code = $1`
	result, err := r.db.ExecContext(ctx, query, code, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate entity type: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity type %s: %w", code, repositories.ErrNotFound)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntityType(row rowScanner) (*entities.EntityType, error) {
	var entityType entities.EntityType
	err := row.Scan(
		&entityType.Code, &entityType.Name, &entityType.PluralName,
		&entityType.Table, &entityType.NameColumn, &entityType.CodeColumn,
		pq.Array(&entityType.ChildTypes), &entityType.Active,
		&entityType.CreatedAt, &entityType.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entityType, nil
}

func collectEntityTypes(rows *sql.Rows) ([]*entities.EntityType, error) {
	var types []*entities.EntityType
	for rows.Next() {
		entityType, err := scanEntityType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity type: %w", err)
		}
		types = append(types, entityType)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity types: %w", err)
	}

	return types, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
