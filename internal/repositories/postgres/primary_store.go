package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories"
)

// PrimaryStore provides generic access to primary business tables. The
// infrastructure layer never knows the shape of a business record; it only
// inserts, updates and deletes rows by id using caller-supplied column
// maps. Table and column names are validated against a strict identifier
// pattern before they reach a query.
type PrimaryStore struct {
	db database.Executor
}

// NewPrimaryStore creates a new primary store over the given executor
func NewPrimaryStore(db database.Executor) *PrimaryStore {
	return &PrimaryStore{db: db}
}

// Insert inserts a new row with the given id into table. Columns are
// emitted in sorted order so generated SQL is deterministic.
func (s *PrimaryStore) Insert(ctx context.Context, table, id string, data map[string]interface{}) error {
	if err := validateTable(table); err != nil {
		return err
	}

	columns := []string{"id"}
	args := []interface{}{id}
	for _, col := range sortedColumns(data) {
		if col == "id" {
			continue
		}
		if !entities.ValidIdentifier(col) {
			return fmt.Errorf("invalid column name: %q", col)
		}
		columns = append(columns, col)
		args = append(args, data[col])
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s in %s: %w", id, table, repositories.ErrConflict)
		}
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	return nil
}

// Get retrieves a row by id as a column map
func (s *PrimaryStore) Get(ctx context.Context, table, id string) (map[string]interface{}, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table)
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns of %s: %w", table, err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", table, err)
		}
		return nil, fmt.Errorf("record %s in %s: %w", id, table, repositories.ErrNotFound)
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
	}

	record := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		// lib/pq returns text columns as []byte
		if b, ok := values[i].([]byte); ok {
			record[col] = string(b)
		} else {
			record[col] = values[i]
		}
	}

	return record, nil
}

// Update applies the column updates to the row with the given id
func (s *PrimaryStore) Update(ctx context.Context, table, id string, updates map[string]interface{}) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	assignments := []string{}
	args := []interface{}{id}
	argIdx := 2
	for _, col := range sortedColumns(updates) {
		if col == "id" {
			return fmt.Errorf("record id cannot be updated")
		}
		if !entities.ValidIdentifier(col) {
			return fmt.Errorf("invalid column name: %q", col)
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, updates[col])
		argIdx++
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $1",
		table, strings.Join(assignments, ", "),
	)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %s in %s: %w", id, table, repositories.ErrNotFound)
	}

	return nil
}

// SoftDelete marks the row inactive via the active flag
func (s *PrimaryStore) SoftDelete(ctx context.Context, table, id string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET active = FALSE WHERE id = $1", table)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete from %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %s in %s: %w", id, table, repositories.ErrNotFound)
	}

	return nil
}

// HardDelete physically removes the row
func (s *PrimaryStore) HardDelete(ctx context.Context, table, id string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %s in %s: %w", id, table, repositories.ErrNotFound)
	}

	return nil
}

func validateTable(table string) error {
	if !entities.ValidIdentifier(table) {
		return fmt.Errorf("invalid table name: %q", table)
	}
	return nil
}

func sortedColumns(m map[string]interface{}) []string {
	columns := make([]string, 0, len(m))
	for col := range m {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
