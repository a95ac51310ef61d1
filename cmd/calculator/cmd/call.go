package cmd

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/meandmytram/pybind-example/internal/bridge/wsbridge"
	"github.com/meandmytram/pybind-example/internal/calculator"
	"github.com/meandmytram/pybind-example/internal/config"
)

var callCmd = &cobra.Command{
	Use:   "call <method> <a> <b>",
	Short: "Call a Calculator method on a running bridge",
	Long: `Call a Calculator method through the WebSocket bridge started by "calculator serve".

The bridge URL defaults to the listen address and path in the config file.

Examples:
  calculator call add 2 3
  calculator call subtract 5 3 --url ws://127.0.0.1:8765/ws --json`,
	Args: cobra.ExactArgs(3),
	RunE: runCall,
}

var (
	callURL     string
	callJSON    bool
	callTimeout time.Duration
)

func init() {
	callCmd.Flags().StringVar(&callURL, "url", "", "bridge URL (default from config)")
	callCmd.Flags().BoolVar(&callJSON, "json", false, "output as JSON")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	method := args[0]
	a, b, err := parseOperands(args[1:])
	if err != nil {
		return err
	}

	target := callURL
	if target == "" {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		target = bridgeURL(cfg)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	client, err := wsbridge.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to connect to bridge: %w", err)
	}
	defer client.Close()

	result, err := client.Invoke(ctx, calculator.ClassName, method, a, b)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}

	return printResult(cmd, arithResult{Method: method, A: a, B: b, Result: result}, callJSON)
}

// bridgeURL derives a ws:// URL from the configured listen address.
func bridgeURL(cfg config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Bridge.GetListen())
	if err != nil {
		host, port = "127.0.0.1", "8765"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: cfg.Bridge.GetPath()}
	return u.String()
}
