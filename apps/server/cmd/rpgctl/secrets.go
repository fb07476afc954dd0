package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rpg-lite/apps/server/internal/auth"
	"rpg-lite/apps/server/internal/config"
)

func hashPasswordCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for RPG_ADMIN_ACCOUNTS",
		Long:  "Print a bcrypt hash for RPG_ADMIN_ACCOUNTS. Without an argument the\npassword is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if user != "" {
				cmd.Printf("%s:%s\n", user, hash)
				return nil
			}
			cmd.Println(hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "prefix the hash with user: for the accounts list")
	return cmd
}

func bridgeTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "bridge-token <bot-instance-id>",
		Short: "Sign a gateway token for a chat bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			tok, err := auth.NewBridgeTokens(cfg.BridgeSecret).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			cmd.Println(tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, 0 never expires")
	return cmd
}
