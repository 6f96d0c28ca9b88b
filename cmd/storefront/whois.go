package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeMC777/storefront/internal/identityrpc"
)

var whoisAddr string

var whoisCmd = &cobra.Command{
	Use:   "whois [user-id]",
	Short: "Ask the identity service whether a user exists and is an admin",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhois,
}

func init() {
	whoisCmd.Flags().StringVar(&whoisAddr, "addr", "", "identity service address (default USER_SERVICE_ADDR)")
}

func runWhois(cmd *cobra.Command, args []string) error {
	addr := whoisAddr
	if addr == "" {
		cfg, _ := loadConfig()
		addr = cfg.UserSvcAddr
	}
	client, conn, err := identityrpc.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := cmd.Context()
	valid, err := client.ValidateUser(ctx, args[0])
	if err != nil {
		return err
	}
	admin := false
	if valid {
		if admin, err = client.IsAdmin(ctx, args[0]); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user=%s exists=%t admin=%t\n", args[0], valid, admin)
	return nil
}
