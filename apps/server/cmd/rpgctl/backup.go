package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rpg-lite/apps/server/internal/config"
	"rpg-lite/apps/server/internal/store"
)

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <out.json.zst>",
		Short: "Write a zstd snapshot of every record in the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, args[0])
		},
	}
}

func runBackup(cmd *cobra.Command, out string) error {
	ctx := context.Background()
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	src, _, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer src.Close()

	records, err := src.LoadAll(ctx)
	if err != nil {
		return err
	}
	snapshot, ok := src.(*store.FileStore)
	if !ok {
		// Stage through a file store so every backend shares one snapshot format.
		dir, err := os.MkdirTemp("", "rpgctl-backup-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		if snapshot, err = store.OpenFile(filepath.Join(dir, "stage.json")); err != nil {
			return err
		}
		if err := snapshot.SaveAll(ctx, records); err != nil {
			return err
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := snapshot.Backup(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	info, err := os.Stat(out)
	if err != nil {
		return err
	}
	cmd.Printf("wrote %d record(s) to %s (%s)\n", len(records), out, humanize.Bytes(uint64(info.Size())))
	return nil
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <in.json.zst> <state.json>",
		Short: "Decompress a backup into a JSON state file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := store.RestoreBackup(f)
			if err != nil {
				return fmt.Errorf("decompress %s: %w", args[0], err)
			}
			if _, err := os.Stat(args[1]); err == nil {
				return fmt.Errorf("%s already exists", args[1])
			}
			if err := os.WriteFile(args[1], data, 0o600); err != nil {
				return err
			}
			cmd.Printf("restored %s\n", args[1])
			return nil
		},
	}
}
