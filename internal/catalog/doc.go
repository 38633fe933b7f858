// Package catalog reads permissions, row-level security policies, triggers,
// constraints and comments out of a PostgreSQL database.
//
// The inspector issues one query per object kind against pg_catalog and
// information_schema, restricted to the requested schemas, and attaches the
// resulting rows to the tables and functions they belong to:
//
//	db, err := catalog.Open(ctx, dsn)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	cat, err := catalog.NewInspector(db).Inspect(ctx, catalog.Filter{
//		Schemas: []string{"app_public"},
//		Scope:   catalog.ScopeAll,
//	})
//
// Rows are returned raw. Deduplication of grants and merging of trigger events
// happen in the sqlgen package, which turns a Catalog into SQL scripts.
package catalog
