package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/stephenafamo/bob"
	"golang.org/x/sync/errgroup"
)

// ErrNoSchemas is returned when a Filter names no exportable schema.
var ErrNoSchemas = errors.New("no schemas to inspect")

// Inspector reads permission-related objects out of the catalog.
type Inspector struct {
	db Querier
}

// NewInspector creates an Inspector over any Querier, typically *sql.DB.
func NewInspector(db Querier) *Inspector {
	return &Inspector{db: db}
}

type relationKey struct {
	schema string
	name   string
}

// tableIndex maps schema-qualified names to loaded tables. It is built before
// the per-kind loaders start and only read afterwards.
type tableIndex map[relationKey]*Table

func (idx tableIndex) lookup(schema, name string) *Table {
	return idx[relationKey{schema: schema, name: name}]
}

// IsSystemSchema reports whether name is a schema that is never exported.
func IsSystemSchema(name string) bool {
	return lo.Contains(systemSchemas, name)
}

// normalizeSchemas drops blanks, duplicates and system schemas, keeping order.
func normalizeSchemas(schemas []string) []string {
	out := lo.Uniq(lo.Compact(schemas))
	return lo.Reject(out, func(s string, _ int) bool {
		return IsSystemSchema(s)
	})
}

// Inspect loads every object kind in scope for the filter's schemas.
//
// Tables are loaded first; grants, policies, triggers, constraints and comments
// are then loaded and attached to their tables, concurrently when the Querier
// is a *sql.DB and one after another otherwise. Rows that refer to
// relations outside the loaded set are ignored.
func (i *Inspector) Inspect(ctx context.Context, f Filter) (*Catalog, error) {
	schemas := normalizeSchemas(f.Schemas)
	if len(schemas) == 0 {
		return nil, ErrNoSchemas
	}
	scope := f.Scope
	if scope == "" {
		scope = ScopeAll
	}

	cat := &Catalog{}

	if scope.IncludesTables() {
		tables, err := i.loadTables(ctx, schemas)
		if err != nil {
			return nil, fmt.Errorf("loading tables: %w", err)
		}
		cat.Tables = tables
	}

	idx := make(tableIndex, len(cat.Tables))
	for _, t := range cat.Tables {
		idx[relationKey{schema: t.Schema, name: t.Name}] = t
	}

	g, gctx := errgroup.WithContext(ctx)
	if _, pooled := i.db.(*sql.DB); !pooled {
		// A *sql.Tx or *sql.Conn is one connection; it cannot run queries
		// while another loader's rows are open.
		g.SetLimit(1)
	}

	if scope.IncludesTables() && len(cat.Tables) > 0 {
		loaders := []struct {
			name string
			fn   func(context.Context, []string, tableIndex) error
		}{
			{"table grants", i.loadTableGrants},
			{"column grants", i.loadColumnGrants},
			{"policies", i.loadPolicies},
			{"triggers", i.loadTriggers},
			{"constraints", i.loadConstraints},
			{"column comments", i.loadColumnComments},
		}
		for _, l := range loaders {
			g.Go(func() error {
				if err := l.fn(gctx, schemas, idx); err != nil {
					return fmt.Errorf("loading %s: %w", l.name, err)
				}
				return nil
			})
		}
	}

	if scope.IncludesFunctions() {
		g.Go(func() error {
			fns, err := i.loadFunctions(gctx, schemas)
			if err != nil {
				return fmt.Errorf("loading functions: %w", err)
			}
			if err := i.loadFunctionGrants(gctx, schemas, fns); err != nil {
				return fmt.Errorf("loading function grants: %w", err)
			}
			cat.Functions = fns
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"schemas":   schemas,
		"tables":    len(cat.Tables),
		"functions": len(cat.Functions),
	}).Debug("catalog inspected")

	return cat, nil
}

// query builds q and runs it, calling scan for every row.
func (i *Inspector) query(ctx context.Context, name string, q bob.Query, scan func(*sql.Rows) error) error {
	text, args, err := buildQuery(ctx, q)
	if err != nil {
		return err
	}

	rows, err := i.db.QueryContext(ctx, text, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.WithFields(log.Fields{"loader": name, "rows": n}).Debug("catalog rows loaded")
	return nil
}

func (i *Inspector) loadTables(ctx context.Context, schemas []string) ([]*Table, error) {
	var tables []*Table
	err := i.query(ctx, "tables", tablesQuery(schemas), func(rows *sql.Rows) error {
		var (
			t    Table
			kind string
		)
		if err := rows.Scan(&t.Schema, &t.Name, &kind, &t.Owner, &t.RLSEnabled, &t.RLSForced, &t.Comment); err != nil {
			return err
		}
		t.Kind = RelKind(kind)
		tables = append(tables, &t)
		return nil
	})
	return tables, err
}

func (i *Inspector) loadTableGrants(ctx context.Context, schemas []string, idx tableIndex) error {
	return i.query(ctx, "table grants", tableGrantsQuery(schemas), func(rows *sql.Rows) error {
		var (
			schema, table string
			g             TableGrant
		)
		if err := rows.Scan(&schema, &table, &g.Grantee, &g.Privilege, &g.Grantable); err != nil {
			return err
		}
		if t := idx.lookup(schema, table); t != nil {
			t.Grants = append(t.Grants, g)
		}
		return nil
	})
}

func (i *Inspector) loadColumnGrants(ctx context.Context, schemas []string, idx tableIndex) error {
	return i.query(ctx, "column grants", columnGrantsQuery(schemas), func(rows *sql.Rows) error {
		var (
			schema, table string
			g             ColumnGrant
		)
		if err := rows.Scan(&schema, &table, &g.Column, &g.Position, &g.Grantee, &g.Privilege, &g.Grantable); err != nil {
			return err
		}
		if t := idx.lookup(schema, table); t != nil {
			t.ColumnGrants = append(t.ColumnGrants, g)
		}
		return nil
	})
}

func (i *Inspector) loadPolicies(ctx context.Context, schemas []string, idx tableIndex) error {
	return i.query(ctx, "policies", policiesQuery(schemas), func(rows *sql.Rows) error {
		var (
			schema, table string
			p             Policy
			roles         pq.StringArray
		)
		if err := rows.Scan(&schema, &table, &p.Name, &p.Permissive, &p.Command, &roles, &p.Using, &p.WithCheck); err != nil {
			return err
		}
		p.Roles = []string(roles)
		if t := idx.lookup(schema, table); t != nil {
			t.Policies = append(t.Policies, p)
		}
		return nil
	})
}

func (i *Inspector) loadTriggers(ctx context.Context, schemas []string, idx tableIndex) error {
	return i.query(ctx, "triggers", triggersQuery(schemas), func(rows *sql.Rows) error {
		var (
			schema, table string
			tg            Trigger
		)
		if err := rows.Scan(&schema, &table, &tg.Name, &tg.Definition, &tg.Enabled, &tg.Constraint); err != nil {
			return err
		}
		if t := idx.lookup(schema, table); t != nil {
			t.Triggers = append(t.Triggers, tg)
		}
		return nil
	})
}

func (i *Inspector) loadConstraints(ctx context.Context, schemas []string, idx tableIndex) error {
	return i.query(ctx, "constraints", constraintsQuery(schemas), func(rows *sql.Rows) error {
		var (
			schema, table string
			c             Constraint
		)
		if err := rows.Scan(&schema, &table, &c.Name, &c.Type, &c.Definition); err != nil {
			return err
		}
		if t := idx.lookup(schema, table); t != nil {
			t.Constraints = append(t.Constraints, c)
		}
		return nil
	})
}

func (i *Inspector) loadColumnComments(ctx context.Context, schemas []string, idx tableIndex) error {
	return i.query(ctx, "column comments", columnCommentsQuery(schemas), func(rows *sql.Rows) error {
		var (
			schema, table string
			c             ColumnComment
		)
		if err := rows.Scan(&schema, &table, &c.Column, &c.Position, &c.Comment); err != nil {
			return err
		}
		if t := idx.lookup(schema, table); t != nil {
			t.ColumnComments = append(t.ColumnComments, c)
		}
		return nil
	})
}

func (i *Inspector) loadFunctions(ctx context.Context, schemas []string) ([]*Function, error) {
	var fns []*Function
	err := i.query(ctx, "functions", functionsQuery(schemas), func(rows *sql.Rows) error {
		var f Function
		if err := rows.Scan(&f.OID, &f.Schema, &f.Name, &f.Kind, &f.IdentityArgs, &f.Owner, &f.Comment); err != nil {
			return err
		}
		fns = append(fns, &f)
		return nil
	})
	return fns, err
}

func (i *Inspector) loadFunctionGrants(ctx context.Context, schemas []string, fns []*Function) error {
	byOID := lo.KeyBy(fns, func(f *Function) int64 { return f.OID })
	return i.query(ctx, "function grants", functionGrantsQuery(schemas), func(rows *sql.Rows) error {
		var (
			oid int64
			g   FunctionGrant
		)
		if err := rows.Scan(&oid, &g.Grantee, &g.Privilege, &g.Grantable); err != nil {
			return err
		}
		if f, ok := byOID[oid]; ok {
			f.Grants = append(f.Grants, g)
		}
		return nil
	})
}
