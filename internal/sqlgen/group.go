package sqlgen

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/pthm/tablerizer/internal/catalog"
)

// privilegeOrder is the order privileges are listed in GRANT statements.
var privilegeOrder = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "TRUNCATE", "REFERENCES", "TRIGGER", "MAINTAIN", "EXECUTE", "USAGE",
}

// sortPrivileges orders privileges canonically; unknown ones go last, alphabetically.
func sortPrivileges(privs []string) {
	rank := func(p string) int {
		if i := lo.IndexOf(privilegeOrder, p); i >= 0 {
			return i
		}
		return len(privilegeOrder)
	}
	sort.SliceStable(privs, func(i, j int) bool {
		ri, rj := rank(privs[i]), rank(privs[j])
		if ri != rj {
			return ri < rj
		}
		return privs[i] < privs[j]
	})
}

// GrantGroup is the set of privileges one grantee holds on one object.
type GrantGroup struct {
	Grantee    string
	Privileges []string // granted without grant option
	Grantable  []string // granted WITH GRANT OPTION
}

// privilegeRow is the common shape of table and function grant rows.
type privilegeRow struct {
	grantee   string
	privilege string
	grantable bool
}

type grantKey struct {
	grantee   string
	privilege string
}

// groupPrivileges dedupes rows by (grantee, privilege), drops the owner and
// out-of-scope grantees, and groups the rest per grantee, sorted by rendered
// role name. A privilege held
// both with and without grant option is reported once, as grantable.
func groupPrivileges(owner string, rows []privilegeRow, inScope func(string) bool, render func(string) string) []GrantGroup {
	grantable := make(map[grantKey]bool)
	var order []grantKey
	for _, row := range rows {
		if row.grantee == owner || !inScope(row.grantee) {
			continue
		}
		k := grantKey{grantee: row.grantee, privilege: strings.ToUpper(row.privilege)}
		prev, seen := grantable[k]
		if !seen {
			order = append(order, k)
		}
		grantable[k] = prev || row.grantable
	}

	byGrantee := make(map[string]*GrantGroup)
	for _, k := range order {
		g, ok := byGrantee[k.grantee]
		if !ok {
			g = &GrantGroup{Grantee: k.grantee}
			byGrantee[k.grantee] = g
		}
		if grantable[k] {
			g.Grantable = append(g.Grantable, k.privilege)
		} else {
			g.Privileges = append(g.Privileges, k.privilege)
		}
	}

	groups := make([]GrantGroup, 0, len(byGrantee))
	for _, g := range byGrantee {
		sortPrivileges(g.Privileges)
		sortPrivileges(g.Grantable)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		ri, rj := render(groups[i].Grantee), render(groups[j].Grantee)
		if ri != rj {
			return ri < rj
		}
		return groups[i].Grantee < groups[j].Grantee
	})
	return groups
}

// GroupTableGrants collapses role_table_grants rows into one group per grantee.
func GroupTableGrants(owner string, grants []catalog.TableGrant, roles Roles) []GrantGroup {
	rows := lo.Map(grants, func(g catalog.TableGrant, _ int) privilegeRow {
		return privilegeRow{grantee: g.Grantee, privilege: g.Privilege, grantable: g.Grantable}
	})
	return groupPrivileges(owner, rows, roles.InScope, roles.Render)
}

// GroupFunctionGrants collapses exploded ACL rows into one group per grantee.
// PUBLIC is always in scope: PostgreSQL grants EXECUTE to PUBLIC by default and
// the cleanup section always revokes it.
func GroupFunctionGrants(owner string, grants []catalog.FunctionGrant, roles Roles) []GrantGroup {
	rows := lo.Map(grants, func(g catalog.FunctionGrant, _ int) privilegeRow {
		return privilegeRow{grantee: g.Grantee, privilege: g.Privilege, grantable: g.Grantable}
	})
	inScope := func(role string) bool { return isPublic(role) || roles.InScope(role) }
	return groupPrivileges(owner, rows, inScope, roles.Render)
}

// ColumnGrantGroup is one privilege on a set of columns for one grantee.
type ColumnGrantGroup struct {
	Grantee   string
	Privilege string
	Columns   []string // ordered by column position
	Grantable bool
}

// GroupColumnGrants collapses column_privileges rows. information_schema
// reports table-level privileges once per column as well; those rows are
// dropped when the matching table grant already covers them.
func GroupColumnGrants(owner string, tableGrants []catalog.TableGrant, columnGrants []catalog.ColumnGrant, roles Roles) []ColumnGrantGroup {
	tableLevel := make(map[grantKey]bool)
	for _, g := range tableGrants {
		k := grantKey{grantee: g.Grantee, privilege: strings.ToUpper(g.Privilege)}
		tableLevel[k] = tableLevel[k] || g.Grantable
	}

	type groupKey struct {
		grantKey
		grantable bool
	}
	type column struct {
		name     string
		position int
	}

	// A column granted both with and without grant option keeps the stronger form.
	type columnKey struct {
		grantKey
		column string
	}
	strongest := make(map[columnKey]bool)
	positions := make(map[columnKey]int)
	var order []columnKey
	for _, g := range columnGrants {
		if g.Grantee == owner || !roles.InScope(g.Grantee) {
			continue
		}
		gk := grantKey{grantee: g.Grantee, privilege: strings.ToUpper(g.Privilege)}
		if tableGrantable, covered := tableLevel[gk]; covered && (tableGrantable || !g.Grantable) {
			continue
		}
		ck := columnKey{grantKey: gk, column: g.Column}
		prev, seen := strongest[ck]
		if !seen {
			order = append(order, ck)
			positions[ck] = g.Position
		}
		strongest[ck] = prev || g.Grantable
	}

	columns := make(map[groupKey][]column)
	var keys []groupKey
	for _, ck := range order {
		k := groupKey{grantKey: ck.grantKey, grantable: strongest[ck]}
		if _, ok := columns[k]; !ok {
			keys = append(keys, k)
		}
		columns[k] = append(columns[k], column{name: ck.column, position: positions[ck]})
	}

	groups := make([]ColumnGrantGroup, 0, len(keys))
	for _, k := range keys {
		cols := columns[k]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].position < cols[j].position })
		groups = append(groups, ColumnGrantGroup{
			Grantee:   k.grantee,
			Privilege: k.privilege,
			Columns:   lo.Map(cols, func(c column, _ int) string { return c.name }),
			Grantable: k.grantable,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Grantee != b.Grantee {
			return a.Grantee < b.Grantee
		}
		if a.Privilege != b.Privilege {
			return lo.IndexOf(privilegeOrder, a.Privilege) < lo.IndexOf(privilegeOrder, b.Privilege)
		}
		return !a.Grantable && b.Grantable
	})
	return groups
}

// GroupTriggers dedupes triggers by name and sorts them by name, which is
// also the order PostgreSQL fires them in.
func GroupTriggers(triggers []catalog.Trigger) []catalog.Trigger {
	out := lo.UniqBy(triggers, func(t catalog.Trigger) string { return t.Name })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
