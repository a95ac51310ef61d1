package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/meandmytram/pybind-example/internal/calculator"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List the classes and methods the module exposes",
	Args:  cobra.NoArgs,
	RunE:  runDescribe,
}

var describeJSON bool

func init() {
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	mod := calculator.NewModule()
	classes := mod.Describe()
	out := cmd.OutOrStdout()

	if describeJSON {
		payload := map[string]any{"module": mod.Name(), "classes": classes}
		if err := json.NewEncoder(out).Encode(payload); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CLASS", "METHOD", "ARITY")
	for _, c := range classes {
		for _, m := range c.Methods {
			t.Row(c.Name, m.Name, strconv.Itoa(m.Arity))
		}
	}

	fmt.Fprintf(out, "module %s\n", mod.Name())
	fmt.Fprintln(out, t.String())
	return nil
}
