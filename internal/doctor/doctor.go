// Package doctor runs pre-flight checks for an export.
//
// The checks confirm that the database is reachable, that the configured
// schemas and roles exist and that the output directory is writable, so
// problems surface before any file is touched.
//
// Example usage:
//
//	d := doctor.New(db, doctor.Target{Schemas: []string{"app_public"}, Out: "./tablerize"})
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/pthm/tablerizer/internal/catalog"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates an issue the export can live with.
	StatusWarn
	// StatusFail indicates an issue that will make the export fail.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

var (
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	categoryStyle = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return passStyle.Render("✓")
	case StatusWarn:
		return warnStyle.Render("⚠")
	case StatusFail:
		return failStyle.Render("✗")
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Database", "Roles").
	Category string

	// Name is a short identifier for the check.
	Name string

	Status  Status
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Check returns the first check with the given name.
func (r *Report) Check(name string) (CheckResult, bool) {
	return lo.Find(r.Checks, func(c CheckResult) bool { return c.Name == name })
}

// Print writes the report to the given writer, grouped by category in the
// order the categories were first seen.
func (r *Report) Print(w io.Writer, verbose bool) {
	groups := lo.GroupBy(r.Checks, func(c CheckResult) string { return c.Category })
	order := lo.Uniq(lo.Map(r.Checks, func(c CheckResult, _ int) string { return c.Category }))

	for _, cat := range order {
		_, _ = fmt.Fprintf(w, "\n%s\n", categoryStyle.Render(cat))
		for _, check := range groups[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", dimStyle.Render(line))
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Target describes the export the checks are run for.
type Target struct {
	Schemas []string
	// Roles is the role filter; empty means every role is exported.
	Roles []string
	// Mappings maps source role names to their replacements.
	Mappings map[string]string
	Out      string
}

// Doctor checks that an export can run against a database.
type Doctor struct {
	db     catalog.Querier
	target Target

	// Populated during Run.
	schemas []string
}

// New creates a new Doctor instance.
func New(db catalog.Querier, target Target) *Doctor {
	return &Doctor{db: db, target: target}
}

// Run executes all health checks and returns a report. Errors are returned
// only for failures of the checks themselves; a failed connection is
// reported, and the database checks after it are skipped.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if !d.checkConnection(ctx, report) {
		d.checkOutputDir(report)
		return report, nil
	}
	if err := d.checkSchemas(ctx, report); err != nil {
		return nil, fmt.Errorf("checking schemas: %w", err)
	}
	if err := d.checkRoles(ctx, report); err != nil {
		return nil, fmt.Errorf("checking roles: %w", err)
	}
	if err := d.checkObjects(ctx, report); err != nil {
		return nil, fmt.Errorf("checking objects: %w", err)
	}
	d.checkOutputDir(report)

	return report, nil
}

func (d *Doctor) checkConnection(ctx context.Context, report *Report) bool {
	version, err := catalog.ServerVersion(ctx, d.db)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Database",
			Name:     "connection",
			Status:   StatusFail,
			Message:  "Cannot query the database",
			Details:  err.Error(),
			FixHint:  "Check --db or database.url in .tablerizerrc",
		})
		return false
	}

	report.AddCheck(CheckResult{
		Category: "Database",
		Name:     "connection",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Connected to PostgreSQL %s", version),
	})
	return true
}

func (d *Doctor) checkSchemas(ctx context.Context, report *Report) error {
	if len(d.target.Schemas) == 0 {
		report.AddCheck(CheckResult{
			Category: "Schemas",
			Name:     "schemas_exist",
			Status:   StatusFail,
			Message:  "No schemas configured",
			FixHint:  "Pass --schemas or set schemas in .tablerizerrc",
		})
		return nil
	}

	existing, err := catalog.ExistingSchemas(ctx, d.db, d.target.Schemas)
	if err != nil {
		return err
	}
	d.schemas = existing

	missing, _ := lo.Difference(d.target.Schemas, existing)
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: "Schemas",
			Name:     "schemas_exist",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d of %d schemas not found", len(missing), len(d.target.Schemas)),
			Details:  "Missing: " + strings.Join(missing, ", "),
			FixHint:  "Schema names are case-sensitive; check the spelling",
		})
		return nil
	}

	report.AddCheck(CheckResult{
		Category: "Schemas",
		Name:     "schemas_exist",
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d schemas exist", len(existing)),
		Details:  strings.Join(existing, ", "),
	})
	return nil
}

func (d *Doctor) checkRoles(ctx context.Context, report *Report) error {
	if len(d.target.Roles) == 0 {
		report.AddCheck(CheckResult{
			Category: "Roles",
			Name:     "roles_exist",
			Status:   StatusPass,
			Message:  "No role filter; grants for every role are exported",
		})
	} else if err := d.checkRoleNames(ctx, report, "roles_exist", "roles", d.target.Roles); err != nil {
		return err
	}

	if len(d.target.Mappings) == 0 {
		return nil
	}
	sources := lo.Keys(d.target.Mappings)
	sort.Strings(sources)
	return d.checkRoleNames(ctx, report, "mapped_roles_exist", "mapped roles", sources)
}

func (d *Doctor) checkRoleNames(ctx context.Context, report *Report, name, what string, roles []string) error {
	existing, err := catalog.ExistingRoles(ctx, d.db, roles)
	if err != nil {
		return err
	}

	missing, _ := lo.Difference(roles, existing)
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: "Roles",
			Name:     name,
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d of %d %s not found", len(missing), len(roles), what),
			Details:  "Missing: " + strings.Join(missing, ", "),
			FixHint:  "Grants to missing roles cannot appear in the export",
		})
		return nil
	}

	report.AddCheck(CheckResult{
		Category: "Roles",
		Name:     name,
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d %s exist", len(roles), what),
	})
	return nil
}

func (d *Doctor) checkObjects(ctx context.Context, report *Report) error {
	if len(d.schemas) == 0 {
		return nil
	}

	counts, err := catalog.CountObjects(ctx, d.db, d.schemas)
	if err != nil {
		return err
	}

	var tables, functions int
	details := make([]string, 0, len(counts))
	for _, c := range counts {
		tables += c.Tables
		functions += c.Functions
		details = append(details, fmt.Sprintf("%s: %d tables, %d functions", c.Schema, c.Tables, c.Functions))
	}

	status, hint := StatusPass, ""
	if tables+functions == 0 {
		status, hint = StatusWarn, "The export will produce no files"
	}
	report.AddCheck(CheckResult{
		Category: "Objects",
		Name:     "objects",
		Status:   status,
		Message:  fmt.Sprintf("Found %d tables and %d functions", tables, functions),
		Details:  strings.Join(details, "\n"),
		FixHint:  hint,
	})
	return nil
}

func (d *Doctor) checkOutputDir(report *Report) {
	if d.target.Out == "" {
		report.AddCheck(CheckResult{
			Category: "Output",
			Name:     "output_writable",
			Status:   StatusFail,
			Message:  "No output directory configured",
			FixHint:  "Pass --out or set out in .tablerizerrc",
		})
		return
	}

	dir, err := writableDir(d.target.Out)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Output",
			Name:     "output_writable",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Output directory %s is not writable", d.target.Out),
			Details:  err.Error(),
			FixHint:  "Choose another --out or fix the directory permissions",
		})
		return
	}

	msg := fmt.Sprintf("Output directory %s is writable", d.target.Out)
	if dir != filepath.Clean(d.target.Out) {
		msg = fmt.Sprintf("Output directory %s will be created under %s", d.target.Out, dir)
	}
	report.AddCheck(CheckResult{
		Category: "Output",
		Name:     "output_writable",
		Status:   StatusPass,
		Message:  msg,
	})
}

// writableDir finds the closest existing ancestor of path (path included) and
// verifies a file can be created in it. It returns that directory.
func writableDir(path string) (string, error) {
	dir := filepath.Clean(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", dir)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		dir = parent
	}

	f, err := os.CreateTemp(dir, ".tablerizer-doctor-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	_ = f.Close()
	return dir, os.Remove(name)
}
