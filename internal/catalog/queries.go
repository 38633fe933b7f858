package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
)

// systemSchemas are never exported, even when requested.
var systemSchemas = []string{"pg_catalog", "information_schema", "pg_toast"}

// buildQuery renders a bob query to SQL text and positional arguments.
func buildQuery(ctx context.Context, q bob.Query) (string, []any, error) {
	sql, args, err := bob.Build(ctx, q)
	if err != nil {
		return "", nil, fmt.Errorf("building query: %w", err)
	}
	return strings.TrimSpace(sql), args, nil
}

// inList renders `col IN ($1, $2, ...)` with one bound argument per value.
func inList(values []string, column ...string) bob.Expression {
	args := lo.Map(values, func(v string, _ int) bob.Expression { return psql.Arg(v) })
	return psql.Quote(column...).In(args...)
}

// notExtensionMember excludes objects created by CREATE EXTENSION.
func notExtensionMember(oidColumn, catalogTable string) bob.Expression {
	return psql.Raw(notExtensionMemberSQL(oidColumn, catalogTable))
}

func notExtensionMemberSQL(oidColumn, catalogTable string) string {
	return fmt.Sprintf(
		"NOT EXISTS (SELECT 1 FROM pg_catalog.pg_depend dep WHERE dep.classid = 'pg_catalog.%s'::regclass AND dep.objid = %s AND dep.deptype = 'e')",
		catalogTable, oidColumn,
	)
}

func tablesQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("n", "nspname"),
			psql.Quote("c", "relname"),
			psql.Raw("c.relkind::text"),
			psql.Raw("pg_catalog.pg_get_userbyid(c.relowner)"),
			psql.Quote("c", "relrowsecurity"),
			psql.Quote("c", "relforcerowsecurity"),
			psql.Raw("coalesce(pg_catalog.obj_description(c.oid, 'pg_class'), '')"),
		),
		sm.From("pg_catalog.pg_class").As("c"),
		sm.InnerJoin("pg_catalog.pg_namespace").As("n").On(
			psql.Quote("n", "oid").EQ(psql.Quote("c", "relnamespace")),
		),
		sm.Where(psql.And(
			inList(schemas, "n", "nspname"),
			psql.Raw("c.relkind IN ('r', 'p', 'v', 'm', 'f')"),
			notExtensionMember("c.oid", "pg_class"),
		)),
		sm.OrderBy(psql.Quote("n", "nspname")),
		sm.OrderBy(psql.Quote("c", "relname")),
	)
}

func tableGrantsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("g", "table_schema"),
			psql.Quote("g", "table_name"),
			psql.Quote("g", "grantee"),
			psql.Quote("g", "privilege_type"),
			psql.Raw("g.is_grantable = 'YES'"),
		),
		sm.From("information_schema.role_table_grants").As("g"),
		sm.Where(inList(schemas, "g", "table_schema")),
		sm.OrderBy(psql.Quote("g", "table_schema")),
		sm.OrderBy(psql.Quote("g", "table_name")),
		sm.OrderBy(psql.Quote("g", "grantee")),
		sm.OrderBy(psql.Quote("g", "privilege_type")),
	)
}

func columnGrantsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("p", "table_schema"),
			psql.Quote("p", "table_name"),
			psql.Quote("p", "column_name"),
			psql.Raw("col.ordinal_position::integer"),
			psql.Quote("p", "grantee"),
			psql.Quote("p", "privilege_type"),
			psql.Raw("p.is_grantable = 'YES'"),
		),
		sm.From("information_schema.column_privileges").As("p"),
		sm.InnerJoin("information_schema.columns").As("col").On(
			psql.Quote("col", "table_schema").EQ(psql.Quote("p", "table_schema")),
			psql.Quote("col", "table_name").EQ(psql.Quote("p", "table_name")),
			psql.Quote("col", "column_name").EQ(psql.Quote("p", "column_name")),
		),
		sm.Where(inList(schemas, "p", "table_schema")),
		sm.OrderBy(psql.Quote("p", "table_schema")),
		sm.OrderBy(psql.Quote("p", "table_name")),
		sm.OrderBy(psql.Quote("p", "grantee")),
		sm.OrderBy(psql.Raw("col.ordinal_position")),
	)
}

func policiesQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("p", "schemaname"),
			psql.Quote("p", "tablename"),
			psql.Quote("p", "policyname"),
			psql.Raw("p.permissive = 'PERMISSIVE'"),
			psql.Quote("p", "cmd"),
			psql.Raw("p.roles::text[]"),
			psql.Raw("coalesce(p.qual, '')"),
			psql.Raw("coalesce(p.with_check, '')"),
		),
		sm.From("pg_catalog.pg_policies").As("p"),
		sm.Where(inList(schemas, "p", "schemaname")),
		sm.OrderBy(psql.Quote("p", "schemaname")),
		sm.OrderBy(psql.Quote("p", "tablename")),
		sm.OrderBy(psql.Quote("p", "policyname")),
	)
}

// triggersQuery reads pg_trigger rather than information_schema.triggers,
// which omits TRUNCATE events, UPDATE OF column lists and constraint trigger
// deferral. Internal triggers (foreign keys) and the clones PostgreSQL
// attaches to partitions are skipped; the parent's trigger recreates them.
func triggersQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("n", "nspname"),
			psql.Quote("c", "relname"),
			psql.Quote("t", "tgname"),
			psql.Raw("pg_catalog.pg_get_triggerdef(t.oid, false)"),
			psql.Raw("t.tgenabled::text"),
			psql.Raw("t.tgconstraint <> 0"),
		),
		sm.From("pg_catalog.pg_trigger").As("t"),
		sm.InnerJoin("pg_catalog.pg_class").As("c").On(
			psql.Quote("c", "oid").EQ(psql.Quote("t", "tgrelid")),
		),
		sm.InnerJoin("pg_catalog.pg_namespace").As("n").On(
			psql.Quote("n", "oid").EQ(psql.Quote("c", "relnamespace")),
		),
		sm.Where(psql.And(
			inList(schemas, "n", "nspname"),
			psql.Raw("NOT t.tgisinternal"),
			psql.Raw("t.tgparentid = 0"),
			notExtensionMember("t.oid", "pg_trigger"),
		)),
		sm.OrderBy(psql.Quote("n", "nspname")),
		sm.OrderBy(psql.Quote("c", "relname")),
		sm.OrderBy(psql.Quote("t", "tgname")),
	)
}

func constraintsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("n", "nspname"),
			psql.Quote("c", "relname"),
			psql.Quote("k", "conname"),
			psql.Raw("k.contype::text"),
			psql.Raw("pg_catalog.pg_get_constraintdef(k.oid, true)"),
		),
		sm.From("pg_catalog.pg_constraint").As("k"),
		sm.InnerJoin("pg_catalog.pg_class").As("c").On(
			psql.Quote("c", "oid").EQ(psql.Quote("k", "conrelid")),
		),
		sm.InnerJoin("pg_catalog.pg_namespace").As("n").On(
			psql.Quote("n", "oid").EQ(psql.Quote("c", "relnamespace")),
		),
		sm.Where(psql.And(
			inList(schemas, "n", "nspname"),
			psql.Raw("k.contype IN ('c', 'f')"),
			psql.Quote("k", "conislocal"),
		)),
		sm.OrderBy(psql.Quote("n", "nspname")),
		sm.OrderBy(psql.Quote("c", "relname")),
		sm.OrderBy(psql.Quote("k", "conname")),
	)
}

func columnCommentsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("n", "nspname"),
			psql.Quote("c", "relname"),
			psql.Quote("a", "attname"),
			psql.Raw("a.attnum::integer"),
			psql.Quote("d", "description"),
		),
		sm.From("pg_catalog.pg_description").As("d"),
		sm.InnerJoin("pg_catalog.pg_class").As("c").On(
			psql.Quote("c", "oid").EQ(psql.Quote("d", "objoid")),
			psql.Raw("d.classoid = 'pg_catalog.pg_class'::regclass"),
		),
		sm.InnerJoin("pg_catalog.pg_namespace").As("n").On(
			psql.Quote("n", "oid").EQ(psql.Quote("c", "relnamespace")),
		),
		sm.InnerJoin("pg_catalog.pg_attribute").As("a").On(
			psql.Quote("a", "attrelid").EQ(psql.Quote("c", "oid")),
			psql.Quote("a", "attnum").EQ(psql.Quote("d", "objsubid")),
		),
		sm.Where(psql.And(
			inList(schemas, "n", "nspname"),
			psql.Raw("d.objsubid > 0"),
			psql.Raw("NOT a.attisdropped"),
		)),
		sm.OrderBy(psql.Quote("n", "nspname")),
		sm.OrderBy(psql.Quote("c", "relname")),
		sm.OrderBy(psql.Quote("a", "attnum")),
	)
}

func functionsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Raw("p.oid::bigint"),
			psql.Quote("n", "nspname"),
			psql.Quote("p", "proname"),
			psql.Raw("p.prokind::text"),
			psql.Raw("pg_catalog.pg_get_function_identity_arguments(p.oid)"),
			psql.Raw("pg_catalog.pg_get_userbyid(p.proowner)"),
			psql.Raw("coalesce(pg_catalog.obj_description(p.oid, 'pg_proc'), '')"),
		),
		sm.From("pg_catalog.pg_proc").As("p"),
		sm.InnerJoin("pg_catalog.pg_namespace").As("n").On(
			psql.Quote("n", "oid").EQ(psql.Quote("p", "pronamespace")),
		),
		sm.Where(psql.And(
			inList(schemas, "n", "nspname"),
			psql.Raw("p.prokind IN ('f', 'p', 'w')"),
			notExtensionMember("p.oid", "pg_proc"),
		)),
		sm.OrderBy(psql.Quote("n", "nspname")),
		sm.OrderBy(psql.Quote("p", "proname")),
		sm.OrderBy(psql.Raw("pg_catalog.pg_get_function_identity_arguments(p.oid)")),
	)
}

// functionGrantsQuery explodes each routine's ACL. A NULL proacl means the
// default privileges, which acldefault spells out (EXECUTE to PUBLIC).
func functionGrantsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Raw("p.oid::bigint"),
			psql.Raw("CASE WHEN acl.grantee = 0 THEN 'PUBLIC' ELSE pg_catalog.pg_get_userbyid(acl.grantee) END"),
			psql.Quote("acl", "privilege_type"),
			psql.Quote("acl", "is_grantable"),
		),
		sm.From("pg_catalog.pg_proc").As("p"),
		sm.InnerJoin("pg_catalog.pg_namespace").As("n").On(
			psql.Quote("n", "oid").EQ(psql.Quote("p", "pronamespace")),
		),
		sm.InnerJoin(psql.Raw("LATERAL pg_catalog.aclexplode(coalesce(p.proacl, pg_catalog.acldefault('f', p.proowner)))")).As("acl").On(
			psql.Raw("TRUE"),
		),
		sm.Where(psql.And(
			inList(schemas, "n", "nspname"),
			psql.Raw("p.prokind IN ('f', 'p', 'w')"),
		)),
		sm.OrderBy(psql.Raw("p.oid")),
		sm.OrderBy(psql.Raw("2")),
		sm.OrderBy(psql.Quote("acl", "privilege_type")),
	)
}

func existingSchemasQuery(names []string) bob.Query {
	return psql.Select(
		sm.Columns(psql.Quote("n", "nspname")),
		sm.From("pg_catalog.pg_namespace").As("n"),
		sm.Where(inList(names, "n", "nspname")),
		sm.OrderBy(psql.Quote("n", "nspname")),
	)
}

func existingRolesQuery(names []string) bob.Query {
	return psql.Select(
		sm.Columns(psql.Quote("r", "rolname")),
		sm.From("pg_catalog.pg_roles").As("r"),
		sm.Where(inList(names, "r", "rolname")),
		sm.OrderBy(psql.Quote("r", "rolname")),
	)
}

func objectCountsQuery(schemas []string) bob.Query {
	return psql.Select(
		sm.Columns(
			psql.Quote("n", "nspname"),
			psql.Raw("(SELECT count(*) FROM pg_catalog.pg_class c WHERE c.relnamespace = n.oid AND c.relkind IN ('r', 'p', 'v', 'm', 'f') AND "+
				notExtensionMemberSQL("c.oid", "pg_class")+")::integer"),
			psql.Raw("(SELECT count(*) FROM pg_catalog.pg_proc p WHERE p.pronamespace = n.oid AND p.prokind IN ('f', 'p', 'w') AND "+
				notExtensionMemberSQL("p.oid", "pg_proc")+")::integer"),
		),
		sm.From("pg_catalog.pg_namespace").As("n"),
		sm.Where(inList(schemas, "n", "nspname")),
		sm.OrderBy(psql.Quote("n", "nspname")),
	)
}
