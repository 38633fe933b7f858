package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/tablerizer/internal/cli"
	"github.com/pthm/tablerizer/internal/update"
	"github.com/pthm/tablerizer/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())
		if !versionCheck {
			return nil
		}

		info, err := update.CheckWithCache(cmd.Context())
		if err != nil {
			return cli.GeneralError("checking for updates", err)
		}
		if info.UpdateAvailable {
			fmt.Printf("%s %s is available (you have %s)\n",
				warnStyle.Render("!"), info.LatestVersion, info.CurrentVersion)
			if info.ReleaseURL != "" {
				fmt.Printf("  %s\n", cmdStyle.Render(info.ReleaseURL))
			}
		} else {
			fmt.Printf("%s up to date\n", successStyle.Render("✓"))
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}
