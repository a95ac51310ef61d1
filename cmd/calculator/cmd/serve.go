package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meandmytram/pybind-example/internal/binding"
	"github.com/meandmytram/pybind-example/internal/bridge/natsbridge"
	"github.com/meandmytram/pybind-example/internal/bridge/wsbridge"
	"github.com/meandmytram/pybind-example/internal/calculator"
	"github.com/meandmytram/pybind-example/internal/config"
	"github.com/meandmytram/pybind-example/internal/logging"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the calculator module to foreign callers",
	Long: `Serve the calculator module over WebSocket and, when enabled in the
config, as NATS request-reply services (services.calculator.add and
services.calculator.subtract).

Changes to log_level in the config file take effect without a restart,
unless --log-level was given.

Examples:
  calculator serve
  calculator serve --listen :9000 --nats`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveListen   string
	serveNATS     bool
	serveLogLevel string
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveNATS, "nats", false, "enable the NATS bridge (overrides config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveLogLevel != "" {
		cfg.LogLevel = serveLogLevel
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	mod := calculator.NewModule()
	ops := make(map[string]gfshutdown.Operation)

	listen := cfg.Bridge.GetListen()
	if serveListen != "" {
		listen = serveListen
	}
	stopBridge, err := startWebSocketBridge(mod, logger.Logger, listen, cfg.Bridge.GetPath())
	if err != nil {
		return err
	}
	ops["websocket-bridge"] = stopBridge

	if serveNATS || cfg.NATS.IsEnabled() {
		stopNATS, err := startNATSBridge(cmd.Context(), mod, logger.Logger, cfg.NATS.GetJetStreamDir())
		if err != nil {
			_ = stopBridge(context.Background())
			return err
		}
		ops["nats-bridge"] = stopNATS
	}

	watcher := config.NewWatcher(configPath)
	if err := watcher.Start(); err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
	} else {
		go followConfig(watcher.Events(), logger, serveLogLevel != "")
		ops["config-watcher"] = func(context.Context) error {
			watcher.Stop()
			return nil
		}
	}

	logger.Info("calculator bridge ready", zap.String("version", Version))

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)
	if code := <-wait; code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	return nil
}

func startWebSocketBridge(mod *binding.Module, logger *zap.Logger, listen, path string) (gfshutdown.Operation, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listen, err)
	}

	bridge := wsbridge.NewServer(mod, logger)
	mux := http.NewServeMux()
	mux.Handle(path, bridge)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket bridge stopped", zap.Error(err))
		}
	}()
	logger.Info("websocket bridge listening", zap.String("addr", ln.Addr().String()), zap.String("path", path))

	return func(ctx context.Context) error {
		bridge.Close()
		return srv.Shutdown(ctx)
	}, nil
}

func startNATSBridge(ctx context.Context, mod *binding.Module, logger *zap.Logger, jetStreamDir string) (gfshutdown.Operation, error) {
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(jetStreamDir),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nats application: %w", err)
	}
	app.Register(natsbridge.NewModule(mod, logger))

	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start nats bridge: %w", err)
	}
	logger.Info("nats bridge started",
		zap.String("add", natsbridge.Subject(mod.Name(), calculator.MethodAdd)),
		zap.String("subtract", natsbridge.Subject(mod.Name(), calculator.MethodSubtract)))

	return app.Stop, nil
}

// followConfig applies log_level changes from the config file. A level
// given with --log-level stays in force for the life of the process.
func followConfig(events <-chan config.Event, logger *logging.Logger, pinned bool) {
	for event := range events {
		if event.Err != nil {
			logger.Warn("ignoring invalid config", zap.Error(event.Err))
			continue
		}
		lvl, err := event.Config.Level()
		if err != nil {
			continue
		}
		if pinned {
			if lvl != logger.Level() {
				logger.Info("config log_level ignored, --log-level is set", zap.Stringer("level", lvl))
			}
			continue
		}
		logger.SetLevel(lvl)
	}
}
