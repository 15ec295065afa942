package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories"
)

// PostgresLinkRepository implements LinkRepository using PostgreSQL
type PostgresLinkRepository struct {
	db database.Executor
}

// NewPostgresLinkRepository creates a new PostgreSQL link repository
func NewPostgresLinkRepository(db database.Executor) repositories.LinkRepository {
	return &PostgresLinkRepository{db: db}
}

// Set creates a link. An identical four-tuple+kind is a no-op: the
// five-column primary key resolves concurrent identical inserts without
// application-level locking.
func (r *PostgresLinkRepository) Set(ctx context.Context, link *entities.InstanceLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	query := `
		INSERT INTO entity_links (parent_type, parent_id, child_type, child_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (parent_type, parent_id, child_type, child_id, kind)
		DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		link.ParentType, link.ParentID, link.ChildType, link.ChildID, string(link.Kind), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set link: %w", err)
	}

	return nil
}

// Find retrieves links matching the filter
func (r *PostgresLinkRepository) Find(ctx context.Context, filter *repositories.LinkFilter) ([]*entities.InstanceLink, error) {
	query := `
		SELECT parent_type, parent_id, child_type, child_id, kind, created_at
		FROM entity_links
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	// Build dynamic WHERE clause based on filter
	if filter != nil {
		if filter.ParentType != "" {
			query += fmt.Sprintf(" AND parent_type = $%d", argIdx)
			args = append(args, filter.ParentType)
			argIdx++
		}
		if filter.ParentID != "" {
			query += fmt.Sprintf(" AND parent_id = $%d", argIdx)
			args = append(args, filter.ParentID)
			argIdx++
		}
		if filter.ChildType != "" {
			query += fmt.Sprintf(" AND child_type = $%d", argIdx)
			args = append(args, filter.ChildType)
			argIdx++
		}
		if filter.ChildID != "" {
			query += fmt.Sprintf(" AND child_id = $%d", argIdx)
			args = append(args, filter.ChildID)
			argIdx++
		}
		if filter.Kind != "" {
			query += fmt.Sprintf(" AND kind = $%d", argIdx)
			args = append(args, string(filter.Kind))
			argIdx++
		}
	}

	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find links: %w", err)
	}
	defer rows.Close()

	var links []*entities.InstanceLink
	for rows.Next() {
		var link entities.InstanceLink
		var kind string
		err := rows.Scan(
			&link.ParentType, &link.ParentID, &link.ChildType, &link.ChildID,
			&kind, &link.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		link.Kind = entities.LinkKind(kind)
		links = append(links, &link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// Children retrieves the child instance IDs of a parent
func (r *PostgresLinkRepository) Children(ctx context.Context, parentType, parentID, childType string, kind entities.LinkKind) ([]string, error) {
	query := `
		SELECT child_id
		FROM entity_links
		WHERE parent_type = $1 AND parent_id = $2 AND child_type = $3 AND kind = $4
		ORDER BY created_at
	`
	return r.collectIDs(ctx, query, parentType, parentID, childType, string(kind))
}

// Parents retrieves the parent instance IDs of a child, ordered by link
// creation time
func (r *PostgresLinkRepository) Parents(ctx context.Context, childType, childID, parentType string, kind entities.LinkKind) ([]string, error) {
	query := `
		SELECT parent_id
		FROM entity_links
		WHERE child_type = $1 AND child_id = $2 AND parent_type = $3 AND kind = $4
		ORDER BY created_at
	`
	return r.collectIDs(ctx, query, childType, childID, parentType, string(kind))
}

// ParentRefs retrieves every parent endpoint of a child for the given kind
func (r *PostgresLinkRepository) ParentRefs(ctx context.Context, childType, childID string, kind entities.LinkKind) ([]entities.InstanceRef, error) {
	query := `
		SELECT parent_type, parent_id
		FROM entity_links
		WHERE child_type = $1 AND child_id = $2 AND kind = $3
		ORDER BY created_at
	`
	return r.collectRefs(ctx, query, childType, childID, string(kind))
}

// ChildRefs retrieves every child endpoint of a parent for the given kind
func (r *PostgresLinkRepository) ChildRefs(ctx context.Context, parentType, parentID string, kind entities.LinkKind) ([]entities.InstanceRef, error) {
	query := `
		SELECT child_type, child_id
		FROM entity_links
		WHERE parent_type = $1 AND parent_id = $2 AND kind = $3
		ORDER BY created_at
	`
	return r.collectRefs(ctx, query, parentType, parentID, string(kind))
}

// Delete removes one link
func (r *PostgresLinkRepository) Delete(ctx context.Context, link *entities.InstanceLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	query := `
		DELETE FROM entity_links
		WHERE parent_type = $1 AND parent_id = $2
			AND child_type = $3 AND child_id = $4
			AND kind = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		link.ParentType, link.ParentID, link.ChildType, link.ChildID, string(link.Kind),
	)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	return nil
}

// DeleteForInstance removes every link where the instance appears as either
// parent or child
func (r *PostgresLinkRepository) DeleteForInstance(ctx context.Context, typeCode, instanceID string) (int64, error) {
	query := `
		DELETE FROM entity_links
		WHERE (parent_type = $1 AND parent_id = $2)
			OR (child_type = $1 AND child_id = $2)
	`
	result, err := r.db.ExecContext(ctx, query, typeCode, instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete links for instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}

func (r *PostgresLinkRepository) collectIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return ids, nil
}

func (r *PostgresLinkRepository) collectRefs(ctx context.Context, query string, args ...interface{}) ([]entities.InstanceRef, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var refs []entities.InstanceRef
	for rows.Next() {
		var ref entities.InstanceRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return refs, nil
}
