package catalog

import (
	"fmt"
	"strings"
)

// Scope selects which object kinds are inspected.
type Scope string

const (
	ScopeTables    Scope = "tables"
	ScopeFunctions Scope = "functions"
	ScopeAll       Scope = "all"
)

// ParseScope validates a scope name. Matching is case-insensitive.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeTables:
		return ScopeTables, nil
	case ScopeFunctions:
		return ScopeFunctions, nil
	case ScopeAll, "":
		return ScopeAll, nil
	}
	return "", fmt.Errorf("invalid scope %q (expected tables, functions or all)", s)
}

// IncludesTables reports whether tables are in scope.
func (s Scope) IncludesTables() bool { return s == ScopeTables || s == ScopeAll }

// IncludesFunctions reports whether functions are in scope.
func (s Scope) IncludesFunctions() bool { return s == ScopeFunctions || s == ScopeAll }

// Filter restricts inspection to a set of schemas and object kinds.
type Filter struct {
	Schemas []string
	Scope   Scope
}

// RelKind is pg_class.relkind for the relation kinds that carry permissions.
type RelKind string

const (
	RelKindTable            RelKind = "r"
	RelKindPartitionedTable RelKind = "p"
	RelKindView             RelKind = "v"
	RelKindMaterializedView RelKind = "m"
	RelKindForeignTable     RelKind = "f"
)

// IsTable reports whether the relation is an ordinary or partitioned table,
// the only kinds that support row-level security and constraints.
func (k RelKind) IsTable() bool {
	return k == RelKindTable || k == RelKindPartitionedTable
}

// ObjectType returns the keyword used in COMMENT ON for this relation kind.
func (k RelKind) ObjectType() string {
	switch k {
	case RelKindView:
		return "VIEW"
	case RelKindMaterializedView:
		return "MATERIALIZED VIEW"
	case RelKindForeignTable:
		return "FOREIGN TABLE"
	default:
		return "TABLE"
	}
}

// Label is a human-readable name used in script headers.
func (k RelKind) Label() string {
	switch k {
	case RelKindView:
		return "View"
	case RelKindMaterializedView:
		return "Materialized view"
	case RelKindForeignTable:
		return "Foreign table"
	case RelKindPartitionedTable:
		return "Partitioned table"
	default:
		return "Table"
	}
}

// Catalog is everything read for one export.
type Catalog struct {
	Tables    []*Table
	Functions []*Function
}

// Table is a relation with the objects attached to it.
type Table struct {
	Schema     string
	Name       string
	Kind       RelKind
	Owner      string
	RLSEnabled bool
	RLSForced  bool
	Comment    string

	ColumnComments []ColumnComment
	Grants         []TableGrant
	ColumnGrants   []ColumnGrant
	Policies       []Policy
	Triggers       []Trigger
	Constraints    []Constraint
}

// TableGrant is one row of information_schema.role_table_grants.
type TableGrant struct {
	Grantee   string
	Privilege string
	Grantable bool
}

// ColumnGrant is one row of information_schema.column_privileges.
type ColumnGrant struct {
	Grantee   string
	Column    string
	Position  int
	Privilege string
	Grantable bool
}

// Policy is a row-level security policy from pg_policies.
type Policy struct {
	Name       string
	Permissive bool
	Command    string // ALL, SELECT, INSERT, UPDATE, DELETE
	Roles      []string
	Using      string
	WithCheck  string
}

// Trigger enabled states, from pg_trigger.tgenabled.
const (
	TriggerEnabled  = "O" // fires in origin and local sessions
	TriggerDisabled = "D"
	TriggerReplica  = "R" // fires only in replica sessions
	TriggerAlways   = "A"
)

// Trigger is a user-defined trigger. Definition is the complete CREATE
// [CONSTRAINT] TRIGGER statement from pg_get_triggerdef, without the
// trailing semicolon.
type Trigger struct {
	Name       string
	Definition string
	Enabled    string
	Constraint bool // CREATE CONSTRAINT TRIGGER
}

// Constraint types exported alongside permissions.
const (
	ConstraintCheck      = "c"
	ConstraintForeignKey = "f"
)

// Constraint is a check or foreign key constraint.
type Constraint struct {
	Name       string
	Type       string
	Definition string
}

// ColumnComment is the COMMENT ON COLUMN text for one column.
type ColumnComment struct {
	Column   string
	Position int
	Comment  string
}

// Function kinds from pg_proc.prokind.
const (
	FunctionKindFunction  = "f"
	FunctionKindProcedure = "p"
	FunctionKindWindow    = "w"
)

// Function is one routine signature. Overloads are separate Functions.
type Function struct {
	OID          int64
	Schema       string
	Name         string
	Kind         string
	IdentityArgs string
	Owner        string
	Comment      string
	Grants       []FunctionGrant
}

// ObjectType returns FUNCTION or PROCEDURE for use in GRANT and COMMENT ON.
func (f *Function) ObjectType() string {
	if f.Kind == FunctionKindProcedure {
		return "PROCEDURE"
	}
	return "FUNCTION"
}

// FunctionGrant is one entry of the routine's exploded ACL.
type FunctionGrant struct {
	Grantee   string
	Privilege string
	Grantable bool
}
