package cmd

import (
	"github.com/spf13/cobra"

	"github.com/meandmytram/pybind-example/internal/calculator"
	"github.com/meandmytram/pybind-example/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive calculator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(calculator.NewModule())
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
