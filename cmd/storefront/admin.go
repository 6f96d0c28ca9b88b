package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeMC777/storefront/internal/database"
	"github.com/MikeMC777/storefront/internal/user"
)

var (
	adminUsername string
	adminEmail    string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account.

The password is read from STOREFRONT_ADMIN_PASSWORD so it does not end up in
shell history.

Examples:
  STOREFRONT_ADMIN_PASSWORD=... storefront create-admin --username root --email root@example.com`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "admin", "admin username")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	_ = createAdminCmd.MarkFlagRequired("email")
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	password := os.Getenv("STOREFRONT_ADMIN_PASSWORD")
	if password == "" {
		return fmt.Errorf("STOREFRONT_ADMIN_PASSWORD is required")
	}

	cfg, log := loadConfig()
	ctx := cmd.Context()
	pool, err := database.Connect(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, log); err != nil {
		return err
	}

	svc := user.NewService(user.NewPGRepo(pool), log)
	u, err := svc.CreateAdmin(ctx, user.RegisterRequest{Username: adminUsername, Email: adminEmail, Password: password})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id %s)\n", u.Username, u.ID)
	return nil
}
