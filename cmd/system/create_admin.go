package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/karsaz_backend/internal/app"
	"github.com/Alijeyrad/karsaz_backend/internal/service/auth"
	"github.com/Alijeyrad/karsaz_backend/pkg/util/password"
)

func NewCreateAdminCommand() *cobra.Command {
	var (
		email     string
		pass      string
		firstName string
		super     bool
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Admin or SuperAdmin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			generated := pass == ""
			if generated {
				if pass, err = password.Generate(cfg.Authentication.DefaultPasswordLength); err != nil {
					return err
				}
			}

			var svc auth.Service
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&svc),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			if err := fxApp.Err(); err != nil {
				return fmt.Errorf("failed to build dependencies: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := fxApp.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() { _ = fxApp.Stop(context.Background()) }()

			u, err := svc.CreateAdmin(ctx, auth.AdminRequest{
				Email:     email,
				Password:  pass,
				FirstName: firstName,
				Super:     super,
			})
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}
			fmt.Printf("Created %s %s (%s)\n", u.Role, u.Email, u.ID)
			if generated {
				fmt.Printf("Generated password: %s\n", pass)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&pass, "password", "", "admin password (generated when empty)")
	cmd.Flags().StringVar(&firstName, "first-name", "", "display name (defaults to Admin)")
	cmd.Flags().BoolVar(&super, "super", false, "create a SuperAdmin instead of an Admin")

	return cmd
}
