package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rpg-lite/apps/server/internal/ledger"
)

func ledgerCatCmd() *cobra.Command {
	var kind, player string
	cmd := &cobra.Command{
		Use:   "ledger-cat <file.jsonl.zst>...",
		Short: "Print ledger entries from rotated zstd files as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			n := 0
			for _, path := range args {
				err := ledger.ReadFile(path, func(e ledger.Entry) error {
					if kind != "" && string(e.Kind) != kind {
						return nil
					}
					if player != "" && e.Player != player {
						return nil
					}
					n++
					return enc.Encode(e)
				})
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
			}
			cmd.PrintErrf("%d entr(ies)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only entries of this kind")
	cmd.Flags().StringVar(&player, "player", "", "only entries of this player")
	return cmd
}
