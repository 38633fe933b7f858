package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stephenafamo/bob"
)

// ServerVersion returns the server_version setting, e.g. "16.2".
func ServerVersion(ctx context.Context, db Querier) (string, error) {
	var v string
	if err := db.QueryRowContext(ctx, "SHOW server_version").Scan(&v); err != nil {
		return "", fmt.Errorf("querying server version: %w", err)
	}
	return v, nil
}

// ExistingSchemas returns the subset of names that exist as schemas.
func ExistingSchemas(ctx context.Context, db Querier, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return NewInspector(db).names(ctx, "schemas", existingSchemasQuery(names))
}

// ExistingRoles returns the subset of names that exist as roles.
func ExistingRoles(ctx context.Context, db Querier, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return NewInspector(db).names(ctx, "roles", existingRolesQuery(names))
}

// ObjectCount is the number of exportable objects in one schema.
type ObjectCount struct {
	Schema    string
	Tables    int
	Functions int
}

// CountObjects counts relations and routines per schema. Schemas that do not
// exist are omitted.
func CountObjects(ctx context.Context, db Querier, schemas []string) ([]ObjectCount, error) {
	if len(schemas) == 0 {
		return nil, nil
	}
	var counts []ObjectCount
	err := NewInspector(db).query(ctx, "object counts", objectCountsQuery(schemas), func(rows *sql.Rows) error {
		var c ObjectCount
		if err := rows.Scan(&c.Schema, &c.Tables, &c.Functions); err != nil {
			return err
		}
		counts = append(counts, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting objects: %w", err)
	}
	return counts, nil
}

// names runs a single-column query returning identifiers.
func (i *Inspector) names(ctx context.Context, what string, q bob.Query) ([]string, error) {
	var out []string
	err := i.query(ctx, what, q, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		out = append(out, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", what, err)
	}
	return out, nil
}
