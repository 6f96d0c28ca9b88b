// Command storefront runs the storefront HTTP API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MikeMC777/storefront/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront backend: catalog, accounts, checkout and orders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(whoisCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and builds the process logger.
func loadConfig() (config.Config, zerolog.Logger) {
	boot := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load(boot)
	return cfg, cfg.Logger()
}
