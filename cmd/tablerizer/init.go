package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pthm/tablerizer/internal/catalog"
	"github.com/pthm/tablerizer/internal/cli"
)

const rcFileName = ".tablerizerrc"

var (
	initYes   bool
	initForce bool
	initPath  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .tablerizerrc",
	Long: `Create a .tablerizerrc in the current directory. Questions are asked
interactively unless --yes is given or stdin is not a terminal, in which case
the defaults are written.`,
	Example: `  # Answer a few questions
  tablerizer init

  # Write the defaults without prompting
  tablerizer init --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(initPath); err == nil && !initForce {
			return cli.GeneralError(fmt.Sprintf("%s already exists (use --force to overwrite)", initPath), nil)
		}

		answers := defaultInitAnswers()
		if !initYes && term.IsTerminal(int(os.Stdin.Fd())) {
			if err := answers.ask(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return cli.GeneralError("aborted", nil)
				}
				return cli.GeneralError("reading answers", err)
			}
		}

		rc, err := answers.config()
		if err != nil {
			return cli.ConfigError("invalid answer", err)
		}
		if err := writeRC(initPath, rc); err != nil {
			return cli.GeneralError("writing config", err)
		}

		if !quiet {
			fmt.Printf("%s Wrote %s\n", successStyle.Render("✓"), initPath)
			fmt.Printf("  Next: %s\n", cmdStyle.Render("tablerizer doctor"))
		}
		return nil
	},
}

func init() {
	f := initCmd.Flags()
	f.BoolVarP(&initYes, "yes", "y", false, "write the defaults without prompting")
	f.BoolVar(&initForce, "force", false, "overwrite an existing file")
	f.StringVar(&initPath, "path", rcFileName, "file to write")
}

// initAnswers holds the form fields as typed by the user.
type initAnswers struct {
	schemas     string
	out         string
	roles       string
	scope       string
	databaseURL string
}

func defaultInitAnswers() *initAnswers {
	return &initAnswers{
		schemas: "public",
		out:     "./tablerize",
		scope:   string(catalog.ScopeAll),
	}
}

func (a *initAnswers) ask() error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Schemas to export").
				Description("Comma-separated").
				Value(&a.schemas).
				Validate(func(s string) error {
					if len(splitList(s)) == 0 {
						return errors.New("at least one schema is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Output directory").
				Value(&a.out),
			huh.NewInput().
				Title("Roles").
				Description("Comma-separated; leave empty to export grants to every role").
				Value(&a.roles),
			huh.NewSelect[string]().
				Title("Scope").
				Options(huh.NewOptions(string(catalog.ScopeAll), string(catalog.ScopeTables), string(catalog.ScopeFunctions))...).
				Value(&a.scope),
			huh.NewInput().
				Title("Database URL").
				Description("Leave empty to use DATABASE_URL or the PG* variables").
				Value(&a.databaseURL),
		),
	).Run()
}

// config turns the answers into the file contents, keeping every other
// setting at its default.
func (a *initAnswers) config() (*cli.Config, error) {
	scope, err := catalog.ParseScope(a.scope)
	if err != nil {
		return nil, err
	}
	schemas := splitList(a.schemas)
	if len(schemas) == 0 {
		return nil, errors.New("at least one schema is required")
	}
	out := strings.TrimSpace(a.out)
	if out == "" {
		return nil, errors.New("output directory is required")
	}

	return &cli.Config{
		Schemas:      schemas,
		Out:          out,
		Roles:        splitList(a.roles),
		RoleMappings: map[string]string{},
		Scope:        string(scope),
		Database: cli.DatabaseConfig{
			URL:     strings.TrimSpace(a.databaseURL),
			Port:    5432,
			SSLMode: "prefer",
		},
		Log: cli.LogConfig{Level: "info"},
	}, nil
}

func writeRC(path string, rc *cli.Config) error {
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
