package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pthm/tablerizer/internal/cli"
	"github.com/pthm/tablerizer/internal/logging"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logCloser  io.Closer

	// Persistent flags
	cfgFile string
	verbose int
	quiet   bool
	logFile string
	dbFlags cli.Flags
)

var rootCmd = &cobra.Command{
	Use:   "tablerizer",
	Short: "Export PostgreSQL permissions and policies as SQL",
	Long: `tablerizer - PostgreSQL permission exporter

tablerizer reads the catalog of a PostgreSQL database and writes one idempotent
SQL script per table and per function. Each script drops and recreates the
object's grants, row level security policies, triggers, constraints and
comments, so it can be applied repeatedly and kept in version control.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that never read it
		switch cmd.Name() {
		case "help", "completion", "version", "init":
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		flags := dbFlags
		flags.LogFile = logFile
		if err := cfg.Apply(flags); err != nil {
			return cli.ConfigError("applying flags", err)
		}

		logCloser, err = logging.Init(logging.Options{
			Verbose: verbose,
			Quiet:   quiet,
			Level:   cfg.Log.Level,
			File:    cfg.Log.File,
		})
		if err != nil {
			return cli.ConfigError("configuring logging", err)
		}
		log.WithField("config", configPath).Debug("configuration loaded")
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupExport  = "export"
	groupUtility = "utility"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover .tablerizerrc)")
	pf.CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	pf.StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")

	pf.StringVar(&dbFlags.DatabaseURL, "db", "", "database URL (overrides the discrete connection flags)")
	pf.StringVar(&dbFlags.Host, "host", "", "database host")
	pf.IntVar(&dbFlags.Port, "port", 0, "database port (default 5432)")
	pf.StringVar(&dbFlags.Database, "database", "", "database name")
	pf.StringVar(&dbFlags.User, "user", "", "database user")
	pf.StringVar(&dbFlags.Password, "password", "", "database password")
	pf.StringVar(&dbFlags.SSLMode, "sslmode", "", "SSL mode (disable, prefer, require, ...)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupExport, Title: "Export:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	exportCmd.GroupID = groupExport
	doctorCmd.GroupID = groupExport
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(doctorCmd)

	initCmd.GroupID = groupUtility
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. An interrupt cancels the running command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		cli.ExitWithError(err)
	}
}
