package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pthm/tablerizer/internal/catalog"
	"github.com/pthm/tablerizer/internal/cli"
	"github.com/pthm/tablerizer/internal/export"
)

var (
	exportSchemas      []string
	exportOut          string
	exportRoles        []string
	exportRoleMappings []string
	exportScope        string
	exportDryRun       bool
	exportClean        bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export permissions, policies, triggers and comments",
	Long: `Export writes <out>/<schema>/tables/<table>.sql and
<out>/<schema>/functions/<function>.sql. Every file revokes and drops what it
manages before recreating it, so applying it twice is harmless.`,
	Example: `  # Export two schemas using .tablerizerrc for the rest
  tablerizer export --schemas app_public,app_private

  # Only grants to app_user, renamed to a placeholder
  tablerizer export --roles app_user --role-mapping app_user=:DATABASE_VISITOR

  # Print the scripts instead of writing them
  tablerizer export --db postgres://localhost/app --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cli.Flags{
			Schemas:      exportSchemas,
			Out:          exportOut,
			Roles:        exportRoles,
			RoleMappings: exportRoleMappings,
			Scope:        exportScope,
		}
		if cmd.Flags().Changed("clean") {
			flags.Clean = &exportClean
		}

		settings, err := cli.Resolve(flags, cfg)
		if err != nil {
			return cli.ConfigError("invalid configuration", err)
		}
		return runExport(cmd.Context(), settings, exportDryRun)
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringSliceVar(&exportSchemas, "schemas", nil, "schemas to export (comma-separated)")
	f.StringVarP(&exportOut, "out", "o", "", "output directory")
	f.StringSliceVar(&exportRoles, "roles", nil, "only export grants to these roles (comma-separated)")
	f.StringArrayVar(&exportRoleMappings, "role-mapping", nil, "rename a role in the output, as from=to (repeatable)")
	f.StringVar(&exportScope, "scope", "", "what to export: all, tables or functions")
	f.BoolVar(&exportDryRun, "dry-run", false, "print the scripts to stdout instead of writing files")
	f.BoolVar(&exportClean, "clean", false, "remove previously exported files of the selected schemas first")
}

func runExport(ctx context.Context, settings cli.ExportSettings, dryRun bool) error {
	db, err := catalog.Open(ctx, settings.DSN)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()

	log.WithFields(log.Fields{
		"schemas": settings.Filter.Schemas,
		"scope":   settings.Filter.Scope,
		"out":     settings.Out,
		"dry_run": dryRun,
	}).Debug("starting export")

	showOutput := !quiet && !dryRun
	if showOutput {
		printBanner(os.Stderr, "tablerizer export",
			"schemas", strings.Join(settings.Filter.Schemas, ", "),
			"scope", string(settings.Filter.Scope),
			"output", settings.Out,
		)
	}

	opts := export.Options{
		Out:   settings.Out,
		Roles: settings.Roles,
		Clean: settings.Clean,
	}
	if dryRun {
		opts.DryRun = os.Stdout
	} else if showOutput {
		opts.Progress = export.NewProgress(os.Stderr)
	}

	res, err := export.New(catalog.NewInspector(db), opts).Run(ctx, settings.Filter)
	if err != nil {
		if errors.Is(err, catalog.ErrNoSchemas) {
			return cli.ConfigError("invalid configuration", err)
		}
		if errors.Is(err, export.ErrIntrospection) {
			return cli.IntrospectError("reading catalog", err)
		}
		return cli.GeneralError("exporting", err)
	}

	if showOutput {
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", successStyle.Render("✓"), res.Summary())
		if res.Skipped > 0 {
			_, _ = fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("  %d objects had nothing to export", res.Skipped)))
		}
	}
	return nil
}
