package cmd

import (
	"github.com/spf13/cobra"

	"github.com/meandmytram/pybind-example/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "calculator",
	Short: "Expose the Calculator class to foreign callers",
	Long: `calculator exposes a Calculator class with add and subtract methods.

Call it directly from the command line, interactively with the TUI, or
serve it to other languages over WebSocket or NATS.

Negative operands must follow "--" so they are not read as flags:
  calculator subtract -- -2 3`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPathname(), "path to config file")
}

// Execute runs the root command with args and returns a process exit code.
func Execute(args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
