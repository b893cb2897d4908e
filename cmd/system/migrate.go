package system

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/Alijeyrad/karsaz_backend/pkg/database"
)

const defaultMigrateTimeout = 2 * time.Minute

func NewMigrateCommand() *cobra.Command {
	var skipPolicies bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed the default RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			timeout := defaultMigrateTimeout
			if cfg.Server.TimeoutSeconds > 0 {
				timeout = time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()

			db, err := database.NewGorm(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			client := repo.NewClient(db)
			defer client.Close()

			if err := client.RunMigrations(ctx); err != nil {
				return fmt.Errorf("migrate %s: %w", cfg.Database.DBName, err)
			}
			fmt.Fprintf(out, "Schema migrated: %s\n", cfg.Database.DBName)

			if skipPolicies {
				return nil
			}

			// Opening the enforcer creates the casbin_rule table.
			auth, cleanup, err := authorize.Setup(cfg.Authorization, database.DSN(cfg.CasbinDatabase))
			if err != nil {
				return fmt.Errorf("open policy store: %w", err)
			}
			defer cleanup(context.Background())

			if err := authorize.SeedDefaultPolicies(ctx, auth); err != nil {
				return fmt.Errorf("seed policies: %w", err)
			}
			fmt.Fprintf(out, "Policies seeded: %s\n", cfg.CasbinDatabase.DBName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPolicies, "skip-policies", false, "only migrate the application schema")

	return cmd
}
