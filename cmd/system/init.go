package system

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/pkg/database"
)

const initTimeout = time.Minute

// databaseNames lists what init should create: server.databases when set,
// otherwise the application and policy databases.
func databaseNames(cfg *config.Config) []string {
	if len(cfg.Server.Databases) > 0 {
		return cfg.Server.Databases
	}
	var names []string
	seen := map[string]bool{}
	for _, n := range []string{cfg.Database.DBName, cfg.CasbinDatabase.DBName} {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the application and policy databases if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			names := databaseNames(cfg)
			if len(names) == 0 {
				return fmt.Errorf("no databases configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), initTimeout)
			defer cancel()

			if err := database.EnsureDatabases(ctx, cfg.Database, names); err != nil {
				return fmt.Errorf("init databases: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Databases ready: %v\n", names)
			return nil
		},
	}
}
