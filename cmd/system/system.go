package system

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/karsaz_backend/config"
)

func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Database, policy, key and escrow maintenance commands",
	}

	cmd.AddCommand(
		NewInitCommand(),
		NewMigrateCommand(),
		NewCreateAdminCommand(),
		NewSweepCommand(),
		NewKeygenCommand(),
		NewGenDocsCommand(),
	)

	return cmd
}

// loadConfig reads the file named by the root --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
