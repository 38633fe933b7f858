package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/tablerizer/internal/catalog"
)

func TestGroupTableGrants(t *testing.T) {
	grants := []catalog.TableGrant{
		{Grantee: "app_user", Privilege: "UPDATE"},
		{Grantee: "app_user", Privilege: "SELECT"},
		{Grantee: "app_user", Privilege: "SELECT"}, // second grantor
		{Grantee: "app_admin", Privilege: "DELETE", Grantable: true},
		{Grantee: "app_admin", Privilege: "DELETE"},
		{Grantee: "app_admin", Privilege: "SELECT"},
		{Grantee: "app_owner", Privilege: "SELECT"},
		{Grantee: "PUBLIC", Privilege: "SELECT"},
	}

	t.Run("all roles", func(t *testing.T) {
		got := GroupTableGrants("app_owner", grants, Roles{})
		assert.Equal(t, []GrantGroup{
			{Grantee: "PUBLIC", Privileges: []string{"SELECT"}},
			{Grantee: "app_admin", Privileges: []string{"SELECT"}, Grantable: []string{"DELETE"}},
			{Grantee: "app_user", Privileges: []string{"SELECT", "UPDATE"}},
		}, got)
	})

	t.Run("filtered roles", func(t *testing.T) {
		got := GroupTableGrants("app_owner", grants, Roles{Include: []string{"app_user"}})
		require.Len(t, got, 1)
		assert.Equal(t, "app_user", got[0].Grantee)
	})

	t.Run("sorted by mapped name", func(t *testing.T) {
		roles := Roles{Mappings: map[string]string{"app_user": "aaa_visitor"}}
		got := GroupTableGrants("app_owner", grants, roles)
		require.Len(t, got, 3)
		assert.Equal(t, "PUBLIC", got[0].Grantee)
		assert.Equal(t, "app_user", got[1].Grantee)
	})
}

func TestSortPrivileges(t *testing.T) {
	privs := []string{"MAINTAIN", "TRIGGER", "CUSTOM", "DELETE", "SELECT", "REFERENCES", "INSERT", "TRUNCATE", "UPDATE"}
	sortPrivileges(privs)
	assert.Equal(t, []string{"SELECT", "INSERT", "UPDATE", "DELETE", "TRUNCATE", "REFERENCES", "TRIGGER", "MAINTAIN", "CUSTOM"}, privs)
}

func TestGroupColumnGrants(t *testing.T) {
	tableGrants := []catalog.TableGrant{
		{Grantee: "app_user", Privilege: "SELECT"},
	}
	columnGrants := []catalog.ColumnGrant{
		// Implied by the table-level SELECT.
		{Grantee: "app_user", Column: "id", Position: 1, Privilege: "SELECT"},
		{Grantee: "app_user", Column: "name", Position: 2, Privilege: "SELECT"},
		// Column-only privileges.
		{Grantee: "app_user", Column: "bio", Position: 4, Privilege: "UPDATE"},
		{Grantee: "app_user", Column: "name", Position: 2, Privilege: "UPDATE"},
		{Grantee: "app_admin", Column: "email", Position: 3, Privilege: "SELECT", Grantable: true},
		{Grantee: "app_owner", Column: "email", Position: 3, Privilege: "UPDATE"},
	}

	got := GroupColumnGrants("app_owner", tableGrants, columnGrants, Roles{})
	assert.Equal(t, []ColumnGrantGroup{
		{Grantee: "app_admin", Privilege: "SELECT", Columns: []string{"email"}, Grantable: true},
		{Grantee: "app_user", Privilege: "UPDATE", Columns: []string{"name", "bio"}},
	}, got)
}

func TestGroupColumnGrants_GrantableBeyondTableGrant(t *testing.T) {
	tableGrants := []catalog.TableGrant{{Grantee: "app_user", Privilege: "SELECT"}}
	columnGrants := []catalog.ColumnGrant{
		{Grantee: "app_user", Column: "id", Position: 1, Privilege: "SELECT", Grantable: true},
	}

	got := GroupColumnGrants("app_owner", tableGrants, columnGrants, Roles{})
	require.Len(t, got, 1)
	assert.True(t, got[0].Grantable)
	assert.Equal(t, []string{"id"}, got[0].Columns)
}

func TestGroupTriggers(t *testing.T) {
	triggers := []catalog.Trigger{
		{Name: "_500_audit", Definition: "CREATE TRIGGER _500_audit AFTER INSERT OR UPDATE OR DELETE OR TRUNCATE ON t FOR EACH STATEMENT EXECUTE FUNCTION audit()"},
		{Name: "_100_timestamps", Definition: "CREATE TRIGGER _100_timestamps BEFORE INSERT OR UPDATE ON t FOR EACH ROW EXECUTE FUNCTION tg__timestamps()"},
		{Name: "_500_audit", Definition: "duplicate"},
	}

	got := GroupTriggers(triggers)
	require.Len(t, got, 2)
	assert.Equal(t, "_100_timestamps", got[0].Name)
	assert.Equal(t, "_500_audit", got[1].Name)
	assert.Contains(t, got[1].Definition, "OR TRUNCATE")
}

func TestGroupFunctionGrants_PublicAlwaysInScope(t *testing.T) {
	grants := []catalog.FunctionGrant{
		{Grantee: "PUBLIC", Privilege: "EXECUTE"},
		{Grantee: "app_owner", Privilege: "EXECUTE"},
		{Grantee: "app_user", Privilege: "EXECUTE"},
		{Grantee: "app_admin", Privilege: "EXECUTE"},
	}

	got := GroupFunctionGrants("app_owner", grants, Roles{Include: []string{"app_user"}})
	assert.Equal(t, []GrantGroup{
		{Grantee: "PUBLIC", Privileges: []string{"EXECUTE"}},
		{Grantee: "app_user", Privileges: []string{"EXECUTE"}},
	}, got)
}

func TestRoles(t *testing.T) {
	roles := Roles{
		Include: []string{"app_user", "public"},
		Mappings: map[string]string{
			"app_user":  ":DATABASE_VISITOR",
			"app_admin": "Admin Role",
			"legacy":    "public",
		},
	}

	assert.True(t, roles.InScope("app_user"))
	assert.True(t, roles.InScope("PUBLIC"))
	assert.False(t, roles.InScope("app_admin"))
	assert.True(t, Roles{}.InScope("anyone"))

	assert.Equal(t, ":DATABASE_VISITOR", roles.Render("app_user"))
	assert.Equal(t, `"Admin Role"`, roles.Render("app_admin"))
	assert.Equal(t, "PUBLIC", roles.Render("legacy"))
	assert.Equal(t, "PUBLIC", roles.Render("public"))
	assert.Equal(t, `"user"`, roles.Render("user"))
	assert.Equal(t, ":DATABASE_VISITOR, PUBLIC", roles.RenderList([]string{"app_user", "public"}))
}

func TestRoles_CleanupRoles(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Roles{}.cleanupRoles("owner", []string{"b", "owner", "a", "b"}))
	assert.Equal(t, []string{"z", "a"}, Roles{Include: []string{"z", "owner", "a", "z"}}.cleanupRoles("owner", []string{"b"}))
}
