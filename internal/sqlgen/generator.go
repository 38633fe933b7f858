package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/pthm/tablerizer/internal/catalog"
)

// Generator renders scripts for tables and functions.
type Generator struct {
	roles Roles
}

// New creates a Generator that filters and renames grantees through roles.
func New(roles Roles) *Generator {
	return &Generator{roles: roles}
}

// TableScript renders the permissions, policies, triggers, constraints and
// comments of one relation.
func (g *Generator) TableScript(t *catalog.Table) Script {
	target := Qualified(t.Schema, t.Name)
	grants := GroupTableGrants(t.Owner, t.Grants, g.roles)
	columnGrants := GroupColumnGrants(t.Owner, t.Grants, t.ColumnGrants, g.roles)
	triggers := GroupTriggers(t.Triggers)

	var policies []catalog.Policy
	var constraints []catalog.Constraint
	if t.Kind.IsTable() {
		policies = sortedPolicies(t.Policies)
		constraints = sortedConstraints(t.Constraints)
	}

	s := Script{
		Title: fmt.Sprintf("%s %s.%s", t.Kind.Label(), t.Schema, t.Name),
		Notes: []string{"Owner: " + t.Owner},
	}

	// Cleanup
	seen := append(
		lo.Map(grants, func(gg GrantGroup, _ int) string { return gg.Grantee }),
		lo.Map(columnGrants, func(cg ColumnGrantGroup, _ int) string { return cg.Grantee })...,
	)
	s.Cleanup = []Section{
		{Title: "Permissions", Statements: lo.Map(g.roles.cleanupRoles(t.Owner, seen), func(role string, _ int) string {
			return fmt.Sprintf("REVOKE ALL ON TABLE %s FROM %s;", target, g.roles.Render(role))
		})},
		{Title: "Policies", Statements: lo.Map(policies, func(p catalog.Policy, _ int) string {
			return fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s;", Ident(p.Name), target)
		})},
		{Title: "Triggers", Statements: lo.Map(triggers, func(tg catalog.Trigger, _ int) string {
			return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;", Ident(tg.Name), target)
		})},
		{Title: "Constraints", Statements: lo.Map(constraints, func(c catalog.Constraint, _ int) string {
			return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;", target, Ident(c.Name))
		})},
	}

	// Recreate
	var perms []string
	for _, gg := range grants {
		perms = append(perms, g.grantStatements("TABLE "+target, gg)...)
	}
	for _, cg := range columnGrants {
		cols := strings.Join(lo.Map(cg.Columns, func(c string, _ int) string { return Ident(c) }), ", ")
		perms = append(perms, fmt.Sprintf("GRANT %s (%s) ON TABLE %s TO %s%s;",
			cg.Privilege, cols, target, g.roles.Render(cg.Grantee), optf(cg.Grantable, " WITH GRANT OPTION")))
	}

	var rls []string
	if t.Kind.IsTable() && t.RLSEnabled {
		rls = append(rls, fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY;", target))
		if t.RLSForced {
			rls = append(rls, fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY;", target))
		}
	}

	s.Recreate = []Section{
		{Title: "Permissions", Statements: perms},
		{Title: "Row level security", Statements: rls},
		{Title: "Policies", Statements: lo.Map(policies, func(p catalog.Policy, _ int) string {
			return g.createPolicy(target, p)
		})},
		{Title: "Triggers", Statements: createTriggers(t.Kind, target, triggers)},
		{Title: "Constraints", Statements: lo.Map(constraints, func(c catalog.Constraint, _ int) string {
			return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", target, Ident(c.Name), strings.TrimSpace(c.Definition))
		})},
		{Title: "Comments", Statements: tableComments(t, target)},
	}
	return s
}

// FunctionScript renders the permissions and comments of every overload of
// one routine name. fns must share schema and name.
func (g *Generator) FunctionScript(fns []*catalog.Function) Script {
	if len(fns) == 0 {
		return Script{}
	}
	fns = append([]*catalog.Function(nil), fns...)
	sort.SliceStable(fns, func(i, j int) bool { return fns[i].IdentityArgs < fns[j].IdentityArgs })

	first := fns[0]
	label := "Function"
	if first.Kind == catalog.FunctionKindProcedure {
		label = "Procedure"
	}
	s := Script{Title: fmt.Sprintf("%s %s.%s", label, first.Schema, first.Name)}
	if len(fns) > 1 {
		s.Notes = append(s.Notes, fmt.Sprintf("Overloads: %d", len(fns)))
	}

	var revokes, grants, comments []string
	for _, f := range fns {
		target := fmt.Sprintf("%s %s(%s)", f.ObjectType(), Qualified(f.Schema, f.Name), f.IdentityArgs)
		groups := GroupFunctionGrants(f.Owner, f.Grants, g.roles)

		revokes = append(revokes, fmt.Sprintf("REVOKE ALL ON %s FROM PUBLIC;", target))
		seen := lo.Map(groups, func(gg GrantGroup, _ int) string { return gg.Grantee })
		for _, role := range g.roles.cleanupRoles(f.Owner, seen) {
			if isPublic(role) {
				continue
			}
			revokes = append(revokes, fmt.Sprintf("REVOKE ALL ON %s FROM %s;", target, g.roles.Render(role)))
		}

		for _, gg := range groups {
			grants = append(grants, g.grantStatements(target, gg)...)
		}
		if f.Comment != "" {
			comments = append(comments, fmt.Sprintf("COMMENT ON %s IS %s;", target, Literal(f.Comment)))
		}
	}

	s.Cleanup = []Section{{Title: "Permissions", Statements: revokes}}
	s.Recreate = []Section{
		{Title: "Permissions", Statements: grants},
		{Title: "Comments", Statements: comments},
	}
	return s
}

// grantStatements renders one grantee's GRANTs on the object named by on:
// plain privileges first, then those held WITH GRANT OPTION.
func (g *Generator) grantStatements(on string, gg GrantGroup) []string {
	role := g.roles.Render(gg.Grantee)

	var out []string
	if len(gg.Privileges) > 0 {
		out = append(out, fmt.Sprintf("GRANT %s ON %s TO %s;", strings.Join(gg.Privileges, ", "), on, role))
	}
	if len(gg.Grantable) > 0 {
		out = append(out, fmt.Sprintf("GRANT %s ON %s TO %s WITH GRANT OPTION;", strings.Join(gg.Grantable, ", "), on, role))
	}
	return out
}

// createPolicy renders CREATE POLICY, leaving out clauses that match the
// defaults (AS PERMISSIVE, FOR ALL, TO PUBLIC).
func (g *Generator) createPolicy(target string, p catalog.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s", Ident(p.Name), target)
	b.WriteString(optf(!p.Permissive, " AS RESTRICTIVE"))

	cmd := strings.ToUpper(strings.TrimSpace(p.Command))
	b.WriteString(optf(cmd != "" && cmd != "ALL", " FOR %s", cmd))

	roles := lo.Uniq(p.Roles)
	if len(roles) > 0 && !(len(roles) == 1 && isPublic(roles[0])) {
		fmt.Fprintf(&b, " TO %s", g.roles.RenderList(roles))
	}
	b.WriteString(optf(strings.TrimSpace(p.Using) != "", " USING %s", wrapParens(p.Using)))
	b.WriteString(optf(strings.TrimSpace(p.WithCheck) != "", " WITH CHECK %s", wrapParens(p.WithCheck)))
	b.WriteByte(';')
	return b.String()
}

// createTriggers renders each trigger's definition, followed by its enabled
// state when that is not the default. Views cannot change trigger state.
func createTriggers(kind catalog.RelKind, target string, triggers []catalog.Trigger) []string {
	var out []string
	for _, tg := range triggers {
		out = append(out, strings.TrimSuffix(strings.TrimSpace(tg.Definition), ";")+";")
		if kind == catalog.RelKindView {
			continue
		}
		var state string
		switch tg.Enabled {
		case catalog.TriggerDisabled:
			state = "DISABLE TRIGGER"
		case catalog.TriggerReplica:
			state = "ENABLE REPLICA TRIGGER"
		case catalog.TriggerAlways:
			state = "ENABLE ALWAYS TRIGGER"
		default:
			continue
		}
		out = append(out, fmt.Sprintf("ALTER TABLE %s %s %s;", target, state, Ident(tg.Name)))
	}
	return out
}

func tableComments(t *catalog.Table, target string) []string {
	var out []string
	if t.Comment != "" {
		out = append(out, fmt.Sprintf("COMMENT ON %s %s IS %s;", t.Kind.ObjectType(), target, Literal(t.Comment)))
	}
	cols := append([]catalog.ColumnComment(nil), t.ColumnComments...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	for _, c := range cols {
		if c.Comment == "" {
			continue
		}
		out = append(out, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s;", target, Ident(c.Column), Literal(c.Comment)))
	}
	return out
}

func sortedPolicies(policies []catalog.Policy) []catalog.Policy {
	out := append([]catalog.Policy(nil), policies...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedConstraints(constraints []catalog.Constraint) []catalog.Constraint {
	out := append([]catalog.Constraint(nil), constraints...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
