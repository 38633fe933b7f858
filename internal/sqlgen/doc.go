// Package sqlgen turns catalog rows into idempotent SQL scripts.
//
// # Overview
//
// Each script has two parts. The cleanup part removes whatever the object may
// currently carry (REVOKE ALL, DROP POLICY IF EXISTS, DROP TRIGGER IF EXISTS,
// DROP CONSTRAINT IF EXISTS). The recreate part then grants privileges, enables
// row-level security, and creates policies, triggers, constraints and comments
// exactly as they exist in the inspected database. Running a script twice
// leaves the database in the same state as running it once.
//
// # Grouping
//
// Catalog views return one row per privilege and per grantor. The Group*
// functions collapse these rows:
//
//   - GroupTableGrants / GroupFunctionGrants dedupe (grantee, privilege) pairs
//     and order privileges canonically (SELECT, INSERT, UPDATE, DELETE, ...).
//   - GroupColumnGrants drops column grants implied by a table-level grant and
//     collects the remaining columns per grantee and privilege.
//   - GroupTriggers orders triggers by name, their firing order. Each trigger
//     is recreated from its pg_get_triggerdef text, so TRUNCATE events,
//     UPDATE OF column lists and constraint trigger deferral survive.
//
// # Roles
//
// Roles restricts which grantees are emitted and maps role names on the way
// out. Mapped names starting with ":" are Graphile Migrate placeholders and
// are emitted verbatim:
//
//	gen := sqlgen.New(sqlgen.Roles{
//		Include:  []string{"app_user"},
//		Mappings: map[string]string{"app_user": ":DATABASE_VISITOR"},
//	})
//	script := gen.TableScript(table)
//	fmt.Print(script.String())
//
// # Escaping
//
// Identifiers go through Ident, which leaves plain lower-case names bare and
// double-quotes everything else. Comment text goes through Literal.
package sqlgen
