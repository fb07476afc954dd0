package main

import (
	"github.com/spf13/cobra"

	"rpg-lite/progression/catalog"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [game.yaml]",
		Short: "Check a game config against its schema",
		Long:  "Check a game config against its schema. Without a path the built-in\ndefault is checked.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := catalog.Load(path)
			if err != nil {
				return err
			}
			cmd.Printf("ok: %d bot(s), %d item(s), %d custom event(s), %d oracle endpoint(s)\n",
				len(cfg.Bots), len(cfg.Items), len(cfg.CustomEvents), len(cfg.Oracle))
			return nil
		},
	}
}
