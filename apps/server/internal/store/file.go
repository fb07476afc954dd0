package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"rpg-lite/progression"
)

const defaultStateFileName = "rpg_state.json"

// FileStore keeps every record in one JSON document shaped
// {playerId: {botScope: record}}. Flat per-player records from older files
// stay in legacy until the player is first read under some bot scope.
type FileStore struct {
	mu      sync.Mutex
	path    string
	players map[string]map[string]*progression.Record
	legacy  map[string]*progression.Record
}

// OpenFile loads path, or starts empty when it does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty state file path")
	}
	s := &FileStore{
		path:    filepath.Clean(path),
		players: make(map[string]map[string]*progression.Record),
		legacy:  make(map[string]*progression.Record),
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := s.decode(data); err != nil {
		return nil, fmt.Errorf("state file %s: %w", s.path, err)
	}
	if n := len(s.legacy); n > 0 {
		log.Printf("[Store] state file has %d unscoped legacy record(s), migrating on first access", n)
	}
	return s, nil
}

func (s *FileStore) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	for player, raw := range top {
		if progression.LooksLikeRecord(raw) {
			rec, err := progression.DecodeRecord(raw)
			if err != nil {
				return fmt.Errorf("player %s: %w", player, err)
			}
			s.legacy[player] = rec
			continue
		}
		var scopes map[string]json.RawMessage
		if err := json.Unmarshal(raw, &scopes); err != nil {
			return fmt.Errorf("player %s: %w", player, err)
		}
		byScope := make(map[string]*progression.Record, len(scopes))
		for scope, recRaw := range scopes {
			rec, err := progression.DecodeRecord(recRaw)
			if err != nil {
				return fmt.Errorf("player %s scope %s: %w", player, scope, err)
			}
			byScope[scope] = rec
		}
		s.players[player] = byScope
	}
	return nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Get(_ context.Context, key progression.Key) (*progression.Record, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.players[key.PlayerID][key.BotID]; rec != nil {
		return rec.Clone(), nil
	}
	if old, ok := s.legacy[key.PlayerID]; ok {
		s.setLocked(key, old)
		delete(s.legacy, key.PlayerID)
		if err := s.flushLocked(); err != nil {
			// keep memory consistent with disk
			delete(s.players[key.PlayerID], key.BotID)
			s.legacy[key.PlayerID] = old
			return nil, fmt.Errorf("store migrate %s: %w", key, err)
		}
		log.Printf("[Store] migrated legacy record player=%s scope=%s", key.PlayerID, key.BotID)
		return old.Clone(), nil
	}
	rec := progression.NewRecord()
	s.setLocked(key, rec)
	return rec.Clone(), nil
}

func (s *FileStore) setLocked(key progression.Key, rec *progression.Record) {
	byScope := s.players[key.PlayerID]
	if byScope == nil {
		byScope = make(map[string]*progression.Record)
		s.players[key.PlayerID] = byScope
	}
	byScope[key.BotID] = rec
}

func (s *FileStore) Put(_ context.Context, key progression.Key, rec *progression.Record) error {
	if err := checkKey(key); err != nil {
		return err
	}
	cp := rec.Clone()
	progression.Normalize(cp)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.players[key.PlayerID][key.BotID]
	s.setLocked(key, cp)
	if err := s.flushLocked(); err != nil {
		if prev != nil {
			s.players[key.PlayerID][key.BotID] = prev
		} else {
			delete(s.players[key.PlayerID], key.BotID)
		}
		return fmt.Errorf("store put %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) LoadAll(context.Context) (map[progression.Key]*progression.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[progression.Key]*progression.Record)
	for player, byScope := range s.players {
		for scope, rec := range byScope {
			out[progression.Key{PlayerID: player, BotID: scope}] = rec.Clone()
		}
	}
	return out, nil
}

func (s *FileStore) SaveAll(_ context.Context, records map[progression.Key]*progression.Record) error {
	for k := range records {
		if err := checkKey(k); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := make(map[progression.Key]*progression.Record, len(records))
	for k, v := range records {
		prev[k] = s.players[k.PlayerID][k.BotID]
		cp := v.Clone()
		progression.Normalize(cp)
		s.setLocked(k, cp)
	}
	if err := s.flushLocked(); err != nil {
		for k, old := range prev {
			if old != nil {
				s.players[k.PlayerID][k.BotID] = old
			} else {
				delete(s.players[k.PlayerID], k.BotID)
			}
		}
		return fmt.Errorf("store save all: %w", err)
	}
	return nil
}

// Legacy returns the unscoped records that no bot has claimed yet.
func (s *FileStore) Legacy() map[string]*progression.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*progression.Record, len(s.legacy))
	for k, v := range s.legacy {
		out[k] = v.Clone()
	}
	return out
}

// Backup writes a zstd-compressed snapshot of the state document to w.
func (s *FileStore) Backup(w io.Writer) error {
	s.mu.Lock()
	data, err := s.encodeLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// RestoreBackup decompresses a Backup stream into a state document.
func RestoreBackup(r io.Reader) ([]byte, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

func (s *FileStore) encodeLocked() ([]byte, error) {
	doc := make(map[string]any, len(s.players)+len(s.legacy))
	for player, rec := range s.legacy {
		doc[player] = rec
	}
	for player, byScope := range s.players {
		if len(byScope) == 0 {
			continue
		}
		doc[player] = byScope
	}
	return json.MarshalIndent(doc, "", "  ")
}

// flushLocked replaces the state file atomically: temp file in the same
// directory, fsync, rename. A failed write leaves the live file intact.
func (s *FileStore) flushLocked() error {
	data, err := s.encodeLocked()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// DefaultFilePath is the state file location under the user config dir.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rpg-lite", defaultStateFileName), nil
}
