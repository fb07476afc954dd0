package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"rpg-lite/apps/server/internal/config"
	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/apps/server/internal/store"
	"rpg-lite/progression"
)

func importCmd() *cobra.Command {
	var legacyBot string
	cmd := &cobra.Command{
		Use:   "import <state.json>",
		Short: "Copy a JSON state file into the configured store",
		Long: "Copy every record of a JSON state file into the configured store.\n" +
			"Flat records from older files have no bot scope; --legacy-bot assigns\n" +
			"them to one bot instance. Without it they are skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], legacyBot)
		},
	}
	cmd.Flags().StringVar(&legacyBot, "legacy-bot", "", "bot instance id that owns unscoped records")
	return cmd
}

func runImport(cmd *cobra.Command, path, legacyBot string) error {
	ctx := context.Background()
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	src, err := store.OpenFile(path)
	if err != nil {
		return err
	}
	records, skipped, err := collectImport(ctx, src, legacyBot)
	if err != nil {
		return err
	}
	if skipped > 0 {
		log.Printf("[Import] skipped %d unscoped record(s); pass --legacy-bot to keep them", skipped)
	}

	dst, mode, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer dst.Close()
	led, _, err := ledger.Open(cfg.LedgerMode, cfg.LedgerDir, cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer led.Close()

	if err := dst.SaveAll(ctx, records); err != nil {
		return err
	}
	now := time.Now().UTC()
	for key, rec := range records {
		ledger.Record(ctx, led, ledger.Entry{
			At:     now,
			Kind:   ledger.KindImport,
			Player: key.PlayerID,
			Bot:    key.BotID,
			Detail: map[string]any{"source": path, "gold": rec.Gold, "favorability": rec.Favorability},
		})
	}
	cmd.Printf("imported %d record(s) into %s store\n", len(records), mode)
	return nil
}

// collectImport gathers the scoped records of src plus its legacy records
// under the scope of legacyBot.
func collectImport(ctx context.Context, src *store.FileStore, legacyBot string) (map[progression.Key]*progression.Record, int, error) {
	records, err := src.LoadAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	legacy := src.Legacy()
	if legacyBot == "" {
		return records, len(legacy), nil
	}
	scope := progression.BotScope(legacyBot)
	for player, rec := range legacy {
		records[progression.Key{PlayerID: player, BotID: scope}] = rec
	}
	return records, 0, nil
}
