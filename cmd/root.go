package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/karsaz_backend/cmd/http"
	systemcmd "github.com/Alijeyrad/karsaz_backend/cmd/system"
)

// Set at build time with -ldflags "-X github.com/Alijeyrad/karsaz_backend/cmd.version=..."
var version = "dev"

var cfgFile string

// NewRootCommand assembles the karsaz command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "karsaz",
		Version: version,
		Short:   "Karsaz appointment marketplace with escrowed payments.",
		Long: `Karsaz connects clients with independent professionals. Clients book and
pay up front; funds are held in escrow until the session completes and an
admin releases them to the professional.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	root.AddCommand(systemcmd.NewSystemCommand())
	root.AddCommand(httpcmd.NewHTTPCommand())

	return root
}

// Execute runs the CLI; SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
