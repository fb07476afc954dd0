package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite ledger path")
	}
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{db: db}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) Append(ctx context.Context, e Entry) error {
	detail := []byte("{}")
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return err
		}
		detail = raw
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ledger_entries (at_ms, kind, player_id, bot_hash, gold_delta, hp_delta, favor_delta, detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, e.At.UnixMilli(), string(e.Kind), e.Player, e.Bot, e.GoldDelta, e.HPDelta, e.FavorDelta, string(detail))
	return err
}

// Recent lists the newest entries for a player under one bot scope.
func (s *SQLiteService) Recent(ctx context.Context, player, bot string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT at_ms, kind, player_id, bot_hash, gold_delta, hp_delta, favor_delta, detail
FROM ledger_entries
WHERE player_id = ? AND bot_hash = ?
ORDER BY id DESC
LIMIT ?
`, player, bot, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var atMs int64
		var kind string
		var detail []byte
		if err := rows.Scan(&atMs, &kind, &e.Player, &e.Bot, &e.GoldDelta, &e.HPDelta, &e.FavorDelta, &detail); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(atMs).UTC()
		e.Kind = Kind(kind)
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func ensureSQLiteLedgerSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS ledger_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    at_ms INTEGER NOT NULL,
    kind TEXT NOT NULL,
    player_id TEXT NOT NULL,
    bot_hash TEXT NOT NULL,
    gold_delta INTEGER NOT NULL DEFAULT 0,
    hp_delta INTEGER NOT NULL DEFAULT 0,
    favor_delta INTEGER NOT NULL DEFAULT 0,
    detail TEXT NOT NULL DEFAULT '{}'
)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_player ON ledger_entries(player_id, bot_hash, id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
