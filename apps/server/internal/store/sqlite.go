package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rpg-lite/progression"
)

const defaultLocalDBName = "rpg_local.db"

type sqliteStore struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
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

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Get(ctx context.Context, key progression.Key) (*progression.Record, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", key, err)
	}
	defer tx.Rollback()

	rec, err := s.readOrInsertLocked(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store get %s: %w", key, err)
	}
	return rec, nil
}

func (s *sqliteStore) Put(ctx context.Context, key progression.Key, rec *progression.Record) error {
	if err := checkKey(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.upsert(ctx, s.db, key, rec); err != nil {
		return fmt.Errorf("store put %s: %w", key, err)
	}
	return nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqliteStore) upsert(ctx context.Context, db sqlExecer, key progression.Key, rec *progression.Record) error {
	payload, err := encodePayload(rec)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO player_records (player_id, bot_hash, payload, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(player_id, bot_hash) DO UPDATE SET
    payload = excluded.payload,
    updated_at_ms = excluded.updated_at_ms
`, key.PlayerID, key.BotID, payload, time.Now().UTC().UnixMilli())
	return err
}

func (s *sqliteStore) LoadAll(ctx context.Context) (map[progression.Key]*progression.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player_id, bot_hash, payload FROM player_records`)
	if err != nil {
		return nil, fmt.Errorf("store load all: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *sqliteStore) SaveAll(ctx context.Context, records map[progression.Key]*progression.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store save all: %w", err)
	}
	defer tx.Rollback()
	for key, rec := range records {
		if err := checkKey(key); err != nil {
			return err
		}
		if err := s.upsert(ctx, tx, key, rec); err != nil {
			return fmt.Errorf("store save all %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store save all: %w", err)
	}
	return nil
}

func (s *sqliteStore) readOrInsertLocked(ctx context.Context, tx *sql.Tx, key progression.Key) (*progression.Record, error) {
	var payload []byte
	err := tx.QueryRowContext(ctx, `
SELECT payload FROM player_records
WHERE player_id = ? AND bot_hash = ?
`, key.PlayerID, key.BotID).Scan(&payload)
	if err == nil {
		return progression.DecodeRecord(payload)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rec := progression.NewRecord()
	raw, err := encodePayload(rec)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO player_records (player_id, bot_hash, payload, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(player_id, bot_hash) DO NOTHING
`, key.PlayerID, key.BotID, raw, time.Now().UTC().UnixMilli())
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS player_records (
    player_id TEXT NOT NULL,
    bot_hash TEXT NOT NULL,
    payload TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (player_id, bot_hash)
)`)
	return err
}

func encodePayload(rec *progression.Record) (string, error) {
	cp := rec.Clone()
	progression.Normalize(cp)
	raw, err := json.Marshal(cp)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) (map[progression.Key]*progression.Record, error) {
	out := make(map[progression.Key]*progression.Record)
	for rows.Next() {
		var key progression.Key
		var payload []byte
		if err := rows.Scan(&key.PlayerID, &key.BotID, &payload); err != nil {
			return nil, err
		}
		rec, err := progression.DecodeRecord(payload)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", key, err)
		}
		out[key] = rec
	}
	return out, rows.Err()
}

// DefaultSQLitePath is the local database location under the user config dir.
func DefaultSQLitePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rpg-lite", defaultLocalDBName), nil
}
