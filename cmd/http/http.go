package http

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/karsaz_backend/config"
)

func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "HTTP API server commands",
	}

	cmd.PersistentFlags().Int("port", 0, "override server.port from the config file")
	cmd.AddCommand(NewStartCommand())

	return cmd
}

// serverConfig reads the config file named by the root --config flag and
// applies the http command's overrides.
func serverConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return nil, err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	return cfg, nil
}

// fxLogger surfaces the dependency graph lifecycle only at debug level.
func fxLogger(cfg *config.Config, logger *slog.Logger) fx.Option {
	if cfg.Logging.Level != "debug" {
		return fx.NopLogger
	}
	return fx.WithLogger(func() fxevent.Logger { return &fxevent.SlogLogger{Logger: logger} })
}
