package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Alijeyrad/karsaz_backend/internal/api/http"
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/router"
	"github.com/Alijeyrad/karsaz_backend/internal/app"
	"github.com/Alijeyrad/karsaz_backend/pkg/logs"
)

func NewStartCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serverConfig(cmd)
			if err != nil {
				return err
			}

			// Set up structured logger before fx starts so all logs use it.
			logger, flush := logs.New(cfg)
			defer flush()
			slog.SetDefault(logger)

			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				router.Module,
				http.Module,
				app.WorkerModule,
				app.SweepModule,
				fx.Invoke(func(*fiber.App) {}),
				fx.StopTimeout(shutdownTimeout),
				fxLogger(cfg, logger),
			)

			startCtx, cancel := context.WithTimeout(cmd.Context(), fxApp.StartTimeout())
			defer cancel()
			if err := fxApp.Start(startCtx); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			select {
			case <-cmd.Context().Done():
			case sig := <-fxApp.Wait():
				slog.Info("shutdown requested", "signal", sig.Signal)
			}

			stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			return fxApp.Stop(stopCtx)
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for graceful shutdown")

	return cmd
}
