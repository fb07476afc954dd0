package main

import (
	"os"

	"github.com/spf13/cobra"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:   "rpgctl",
		Short: "Operator tooling for the rpg-lite progression server",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "optional dotenv file")
	root.AddCommand(mcpCmd())
	root.AddCommand(importCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(ledgerCatCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(hashPasswordCmd())
	root.AddCommand(bridgeTokenCmd())
	root.AddCommand(validateConfigCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
