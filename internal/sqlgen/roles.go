package sqlgen

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// PublicRole is the pseudo-role every role is a member of.
const PublicRole = "PUBLIC"

func isPublic(role string) bool {
	return strings.EqualFold(role, PublicRole)
}

// Roles selects and renames grantees.
type Roles struct {
	// Include lists the roles whose privileges are exported. Empty means all.
	Include []string

	// Mappings renames roles in generated SQL. Values starting with ":" are
	// placeholders (e.g. ":DATABASE_VISITOR") and are emitted verbatim.
	Mappings map[string]string
}

// InScope reports whether privileges granted to role are exported.
func (r Roles) InScope(role string) bool {
	if len(r.Include) == 0 {
		return true
	}
	if isPublic(role) {
		return lo.ContainsBy(r.Include, isPublic)
	}
	return lo.Contains(r.Include, role)
}

// Render returns the role as it appears in generated SQL.
func (r Roles) Render(role string) string {
	if mapped, ok := r.Mappings[role]; ok && mapped != "" {
		if strings.HasPrefix(mapped, ":") {
			return mapped
		}
		if isPublic(mapped) {
			return PublicRole
		}
		return Ident(mapped)
	}
	if isPublic(role) {
		return PublicRole
	}
	return Ident(role)
}

// RenderList renders a comma-separated role list.
func (r Roles) RenderList(roles []string) string {
	return strings.Join(lo.Map(roles, func(role string, _ int) string { return r.Render(role) }), ", ")
}

// cleanupRoles returns the roles to REVOKE ALL from: the configured list when
// set, otherwise every grantee seen (sorted), never the owner.
func (r Roles) cleanupRoles(owner string, seen []string) []string {
	var roles []string
	if len(r.Include) > 0 {
		roles = lo.Uniq(lo.Compact(r.Include))
	} else {
		roles = lo.Uniq(seen)
		sort.Strings(roles)
	}
	return lo.Reject(roles, func(role string, _ int) bool {
		return role == owner
	})
}
