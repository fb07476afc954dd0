package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rpg-lite/apps/server/internal/store"
	"rpg-lite/progression"
)

func TestCollectImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	scope := progression.BotScope("tavern")
	doc := `{
  "old": {"card": "veteran", "gold": 300, "favorability": 12},
  "older": "a card from the first format",
  "new": {"` + scope + `": {"gold": 50}}
}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := store.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	records, skipped, err := collectImport(context.Background(), src, "")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 1 || skipped != 2 {
		t.Fatalf("without legacy bot: %d records, %d skipped", len(records), skipped)
	}

	records, skipped, err = collectImport(context.Background(), src, "tavern")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if skipped != 0 || len(records) != 3 {
		t.Fatalf("with legacy bot: %d records, %d skipped", len(records), skipped)
	}
	old := records[progression.Key{PlayerID: "old", BotID: scope}]
	if old == nil || old.Gold != 300 || old.Card != "veteran" {
		t.Fatalf("legacy record not scoped: %+v", old)
	}
}
