package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meandmytram/pybind-example/internal/calculator"
)

var addCmd = &cobra.Command{
	Use:   "add <a> <b>",
	Short: "Print a + b",
	Long: `Print the sum of two numbers.

Examples:
  calculator add 2 3            # 5
  calculator add -- -1.5 2      # 0.5
  calculator add 2 3 --json     # {"method":"add","a":2,"b":3,"result":5}`,
	Args: cobra.ExactArgs(2),
	RunE: runArith(calculator.MethodAdd),
}

var subtractCmd = &cobra.Command{
	Use:   "subtract <a> <b>",
	Short: "Print a - b",
	Long: `Print the difference of two numbers.

Examples:
  calculator subtract 5 3          # 2
  calculator subtract 5 3 --json   # {"method":"subtract","a":5,"b":3,"result":2}`,
	Args: cobra.ExactArgs(2),
	RunE: runArith(calculator.MethodSubtract),
}

var arithJSON bool

// arithResult is the --json output shape.
type arithResult struct {
	Method string  `json:"method"`
	A      float64 `json:"a"`
	B      float64 `json:"b"`
	Result float64 `json:"result"`
}

func init() {
	addCmd.Flags().BoolVar(&arithJSON, "json", false, "output as JSON")
	subtractCmd.Flags().BoolVar(&arithJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(addCmd, subtractCmd)
}

func runArith(method string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, b, err := parseOperands(args)
		if err != nil {
			return err
		}

		result, err := calculator.NewModule().Invoke(calculator.ClassName, method, []float64{a, b})
		if err != nil {
			return fmt.Errorf("%s failed: %w", method, err)
		}

		return printResult(cmd, arithResult{Method: method, A: a, B: b, Result: result}, arithJSON)
	}
}

func printResult(cmd *cobra.Command, r arithResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		fmt.Fprintln(out, formatNumber(r.Result))
		return nil
	}
	if math.IsNaN(r.Result) || math.IsInf(r.Result, 0) {
		return fmt.Errorf("cannot encode %s result %v as JSON", r.Method, r.Result)
	}
	enc := json.NewEncoder(out)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

func parseOperands(args []string) (float64, float64, error) {
	a, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid operand a %q: not a number", args[0])
	}
	b, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid operand b %q: not a number", args[1])
	}
	return a, b, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
