package system

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/karsaz_backend/internal/app"
	"github.com/Alijeyrad/karsaz_backend/internal/service/appointment"
	"github.com/Alijeyrad/karsaz_backend/pkg/logs"
	redispkg "github.com/Alijeyrad/karsaz_backend/pkg/redis"
)

func NewSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Complete confirmed appointments whose end time has passed",
		Long: `Run a single auto-complete pass, the same one the HTTP server runs on a
timer when sweep.enabled is set. Safe to run from cron next to live servers:
the pass is skipped if another process holds the sweep lock.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, flush := logs.New(cfg)
			defer flush()
			slog.SetDefault(logger)

			var (
				svc    appointment.Service
				locker *redispkg.Locker
			)
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&svc, &locker),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			if err := fxApp.Err(); err != nil {
				return fmt.Errorf("failed to build dependencies: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if err := fxApp.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() { _ = fxApp.Stop(context.Background()) }()

			n, err := app.RunSweep(ctx, svc, locker, time.Now(), 5*time.Minute)
			if err != nil {
				return err
			}
			fmt.Printf("Completed %d appointment(s).\n", n)
			return nil
		},
	}

	return cmd
}
