package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/tablerizer/internal/catalog"
	"github.com/pthm/tablerizer/internal/cli"
	"github.com/pthm/tablerizer/internal/doctor"
)

var doctorVerbose bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that an export can run",
	Long: `Run health checks: database connection, configured schemas and roles,
role mapping sources and the output directory.`,
	Example: `  # Run health checks
  tablerizer doctor --db postgres://localhost/app

  # Show details for every check
  tablerizer doctor --details`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := cli.Resolve(cli.Flags{}, cfg)
		if err != nil {
			return cli.ConfigError("invalid configuration", err)
		}

		ctx := cmd.Context()
		db, err := catalog.Open(ctx, settings.DSN)
		if err != nil {
			return cli.DBConnectError("connecting to database", err)
		}
		defer func() { _ = db.Close() }()

		if !quiet {
			printBanner(os.Stdout, "tablerizer doctor")
		}

		report, err := doctor.New(db, doctor.Target{
			Schemas:  settings.Filter.Schemas,
			Roles:    settings.Roles.Include,
			Mappings: settings.Roles.Mappings,
			Out:      settings.Out,
		}).Run(ctx)
		if err != nil {
			return cli.IntrospectError("running checks", err)
		}

		report.Print(os.Stdout, doctorVerbose || verbose > 0)

		if report.HasErrors() {
			return cli.GeneralError("health checks failed", nil)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorVerbose, "details", false, "show detailed output")
}
