package cli

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/pthm/tablerizer/internal/catalog"
	"github.com/pthm/tablerizer/internal/sqlgen"
)

// Flags holds values given on the command line. Zero values mean the flag
// was not given; Clean is a pointer so an explicit --clean=false wins.
type Flags struct {
	Schemas      []string
	Out          string
	Roles        []string
	RoleMappings []string // from=to
	Scope        string
	Clean        *bool
	LogFile      string

	DatabaseURL string
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
}

// ExportSettings is the fully resolved input of an export.
type ExportSettings struct {
	Filter catalog.Filter
	Out    string
	Roles  sqlgen.Roles
	Clean  bool
	DSN    string
}

// Apply overlays flags onto c and records them as the source of the values
// they set. Role mappings from flags are merged over configured ones.
func (c *Config) Apply(f Flags) error {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	set := func(key string) { c.Sources[key] = "flag" }

	if len(f.Schemas) > 0 {
		c.Schemas = f.Schemas
		set("schemas")
	}
	if f.Out != "" {
		c.Out = f.Out
		set("out")
	}
	if len(f.Roles) > 0 {
		c.Roles = f.Roles
		set("roles")
	}
	if len(f.RoleMappings) > 0 {
		mappings, err := ParseRoleMappings(f.RoleMappings)
		if err != nil {
			return err
		}
		merged := make(map[string]string, len(c.RoleMappings)+len(mappings))
		maps.Copy(merged, c.RoleMappings)
		maps.Copy(merged, mappings)
		c.RoleMappings = merged
		set("role_mappings")
	}
	if f.Scope != "" {
		c.Scope = f.Scope
		set("scope")
	}
	if f.Clean != nil {
		c.Clean = *f.Clean
		set("clean")
	}
	if f.LogFile != "" {
		c.Log.File = f.LogFile
		set("log.file")
	}

	db := &c.Database
	for _, s := range []struct {
		key  string
		val  string
		dest *string
	}{
		{"database.url", f.DatabaseURL, &db.URL},
		{"database.host", f.Host, &db.Host},
		{"database.name", f.Database, &db.Name},
		{"database.user", f.User, &db.User},
		{"database.password", f.Password, &db.Password},
		{"database.sslmode", f.SSLMode, &db.SSLMode},
	} {
		if s.val != "" {
			*s.dest = s.val
			set(s.key)
		}
	}
	if f.Port != 0 {
		db.Port = f.Port
		set("database.port")
	}
	return nil
}

// Resolve layers flags over cfg (CLI > env > file > defaults) and validates
// the result. cfg is not modified.
func Resolve(f Flags, cfg *Config) (ExportSettings, error) {
	merged := *cfg
	merged.Sources = maps.Clone(cfg.Sources)
	merged.RoleMappings = maps.Clone(cfg.RoleMappings)
	if err := merged.Apply(f); err != nil {
		return ExportSettings{}, err
	}

	schemas := cleanList(merged.Schemas)
	if len(schemas) == 0 {
		return ExportSettings{}, errors.New("at least one schema is required")
	}
	if system := lo.Filter(schemas, func(s string, _ int) bool { return catalog.IsSystemSchema(s) }); len(system) > 0 {
		schemas = lo.Without(schemas, system...)
		if len(schemas) == 0 {
			return ExportSettings{}, fmt.Errorf("system schemas cannot be exported: %s", strings.Join(system, ", "))
		}
		log.WithField("schemas", system).Warn("Skipping system schemas")
	}

	scope, err := catalog.ParseScope(merged.Scope)
	if err != nil {
		return ExportSettings{}, err
	}

	for from, to := range merged.RoleMappings {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return ExportSettings{}, fmt.Errorf("invalid role mapping %q=%q", from, to)
		}
	}

	if strings.TrimSpace(merged.Out) == "" {
		return ExportSettings{}, errors.New("output directory is required")
	}

	dsn, err := merged.DSN()
	if err != nil {
		return ExportSettings{}, err
	}

	return ExportSettings{
		Filter: catalog.Filter{Schemas: schemas, Scope: scope},
		Out:    merged.Out,
		Roles: sqlgen.Roles{
			Include:  cleanList(merged.Roles),
			Mappings: merged.RoleMappings,
		},
		Clean: merged.Clean,
		DSN:   dsn,
	}, nil
}

// cleanList trims entries, drops blanks and duplicates, and keeps order.
func cleanList(values []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(values, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
}
