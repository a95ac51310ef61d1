package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meandmytram/pybind-example/internal/update"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade calculator to the latest version",
	Long:  `Upgrade calculator to the latest version by downloading and installing the newest release.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Current version: %s\n", Version)

		switch update.DetectInstallMethod() {
		case update.InstallHomebrew:
			fmt.Fprintln(out, "\ncalculator was installed via Homebrew.")
			fmt.Fprintln(out, "Run: brew upgrade calculator")
			return nil
		case update.InstallGoInstall:
			fmt.Fprintln(out, "\ncalculator was installed with go install.")
			fmt.Fprintf(out, "Run: go install github.com/%s/cmd/calculator@latest\n", update.Repository)
			return nil
		}

		fmt.Fprintln(out, "Checking for updates...")

		release, hasUpdate, err := update.CheckForUpdate(cmd.Context(), Version)
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		if !hasUpdate {
			fmt.Fprintln(out, "Already at latest version.")
			return nil
		}

		fmt.Fprintf(out, "Updating to %s...\n", release.Version)

		installed, err := update.Update(cmd.Context(), Version)
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}

		fmt.Fprintf(out, "Successfully updated to %s\n", installed.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
}
