package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rpg-lite/progression"
)

var testKey = progression.Key{PlayerID: "p1", BotID: progression.BotScope("bot-a")}

func sampleRecord() *progression.Record {
	rec := progression.NewRecord()
	rec.Card = "a quiet archer"
	rec.Gold = 420
	rec.Favorability = 120
	rec.RPG.HP = -4
	rec.Equip.Weapon = "Bronze Sword"
	return rec
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("get miss: %v", err)
	}
	if diff := cmp.Diff(progression.NewRecord(), got); diff != "" {
		t.Fatalf("miss should yield default record (-want +got):\n%s", diff)
	}

	want := sampleRecord()
	if err := s.Put(ctx, testKey, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err = s.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("read-after-write mismatch (-want +got):\n%s", diff)
	}

	got.Gold = 1
	again, _ := s.Get(ctx, testKey)
	if again.Gold != want.Gold {
		t.Fatalf("store handed out a shared pointer")
	}

	other := progression.Key{PlayerID: "p1", BotID: progression.BotScope("bot-b")}
	rec, err := s.Get(ctx, other)
	if err != nil {
		t.Fatalf("get other scope: %v", err)
	}
	if rec.Gold != 0 {
		t.Fatalf("bot scopes must be isolated, got gold=%d", rec.Gold)
	}

	p2 := progression.Key{PlayerID: "p2", BotID: testKey.BotID}
	bulk := map[progression.Key]*progression.Record{p2: sampleRecord()}
	if err := s.SaveAll(ctx, bulk); err != nil {
		t.Fatalf("save all: %v", err)
	}
	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if _, ok := all[testKey]; !ok {
		t.Fatalf("save all dropped an existing record")
	}
	if diff := cmp.Diff(sampleRecord(), all[p2]); diff != "" {
		t.Fatalf("bulk record mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Get(ctx, progression.Key{PlayerID: "", BotID: "x"}); err == nil {
		t.Fatalf("expected invalid key error")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "rpg.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, s)

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if diff := cmp.Diff(sampleRecord(), got); diff != "" {
		t.Fatalf("persisted record mismatch (-want +got):\n%s", diff)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "rpg.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestCachedStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "rpg.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	c, err := NewCached(s, 8)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer c.Close()
	exerciseStore(t, c)

	p2 := progression.Key{PlayerID: "p2", BotID: testKey.BotID}
	if _, ok := c.cache.Peek(testKey); !ok {
		t.Fatalf("save all evicted an unrelated cached record")
	}
	cached, ok := c.cache.Peek(p2)
	if !ok {
		t.Fatalf("save all did not refresh the written key")
	}
	if diff := cmp.Diff(sampleRecord(), cached); diff != "" {
		t.Fatalf("cached bulk record mismatch (-want +got):\n%s", diff)
	}
}

// brokenStore accepts reads and rejects every write.
type brokenStore struct {
	Store
}

func (brokenStore) Put(context.Context, progression.Key, *progression.Record) error {
	return errDiskFull
}

func (brokenStore) SaveAll(context.Context, map[progression.Key]*progression.Record) error {
	return errDiskFull
}

var errDiskFull = errors.New("disk full")

func TestCachedStore_FailedSaveAllEvicts(t *testing.T) {
	inner := NewMemory()
	ctx := context.Background()
	if err := inner.Put(ctx, testKey, sampleRecord()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c, err := NewCached(brokenStore{Store: inner}, 8)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	if _, err := c.Get(ctx, testKey); err != nil {
		t.Fatalf("warm: %v", err)
	}

	changed := sampleRecord()
	changed.Gold = 1
	if err := c.SaveAll(ctx, map[progression.Key]*progression.Record{testKey: changed}); !errors.Is(err, errDiskFull) {
		t.Fatalf("expected disk full, got %v", err)
	}
	if _, ok := c.cache.Peek(testKey); ok {
		t.Fatalf("failed save all left the key cached")
	}
	got, err := c.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Gold != sampleRecord().Gold {
		t.Fatalf("failed save all leaked gold=%d", got.Gold)
	}
}

const legacyState = `{
  "alice": {"card": "old card", "favorability": 900, "gold": "25", "rpg": {"hp": 40}, "equip": {"weapon": "无"}},
  "bob": "just a card",
  "carol": {"0123456789abcdef": {"gold": 7}}
}`

func TestFileStore_LegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpg.json")
	if err := os.WriteFile(path, []byte(legacyState), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := len(s.Legacy()); n != 2 {
		t.Fatalf("expected 2 legacy entries, got %d", n)
	}

	ctx := context.Background()
	key := progression.Key{PlayerID: "alice", BotID: progression.BotScope("bot-a")}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := progression.NewRecord()
	want.Card = "old card"
	want.Favorability = progression.FavorMax
	want.Gold = 25
	want.RPG.HP = 40
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("migrated record mismatch (-want +got):\n%s", diff)
	}

	// migrated exactly once: a second bot sees a fresh record
	other, _ := s.Get(ctx, progression.Key{PlayerID: "alice", BotID: progression.BotScope("bot-b")})
	if other.Card != "" {
		t.Fatalf("legacy record migrated twice")
	}

	// persisted at migration time, bob is still legacy on disk
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if progression.LooksLikeRecord(doc["alice"]) {
		t.Fatalf("alice still flat on disk: %s", doc["alice"])
	}
	if !progression.LooksLikeRecord(doc["bob"]) {
		t.Fatalf("bob legacy entry lost: %s", doc["bob"])
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again, _ := reopened.Get(ctx, key)
	if diff := cmp.Diff(want, again); diff != "" {
		t.Fatalf("migration not durable (-want +got):\n%s", diff)
	}
	bob := reopened.Legacy()["bob"]
	if bob == nil || bob.Card != "just a card" {
		t.Fatalf("bob legacy card lost: %+v", bob)
	}
	carol, _ := reopened.Get(ctx, progression.Key{PlayerID: "carol", BotID: "0123456789abcdef"})
	if carol.Gold != 7 || carol.RPG.MaxHP != progression.BaseMaxHP {
		t.Fatalf("scoped record not backfilled: %+v", carol)
	}
}

func TestFileStore_FailedWriteKeepsLiveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rpg.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, testKey, sampleRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}
	before, _ := os.ReadFile(path)

	// a read-only directory makes CreateTemp fail before the rename
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Skipf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)
	if f, err := os.CreateTemp(dir, "probe"); err == nil {
		f.Close()
		os.Remove(f.Name())
		t.Skip("directory still writable (running as root?)")
	}

	changed := sampleRecord()
	changed.Gold = 1
	if err := s.Put(ctx, testKey, changed); err == nil {
		t.Fatalf("expected put to fail")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatalf("live file changed by a failed write")
	}
	got, _ := s.Get(ctx, testKey)
	if got.Gold != sampleRecord().Gold {
		t.Fatalf("failed put leaked into memory: gold=%d", got.Gold)
	}
}

func TestFileStore_FailedSaveAllRollsBack(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(filepath.Join(dir, "rpg.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, testKey, sampleRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := os.Chmod(dir, 0o500); err != nil {
		t.Skipf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)
	if f, err := os.CreateTemp(dir, "check"); err == nil {
		f.Close()
		os.Remove(f.Name())
		t.Skip("directory still writable (running as root?)")
	}

	fresh := progression.Key{PlayerID: "p9", BotID: testKey.BotID}
	changed := sampleRecord()
	changed.Gold = 1
	bulk := map[progression.Key]*progression.Record{testKey: changed, fresh: sampleRecord()}
	if err := s.SaveAll(ctx, bulk); err == nil {
		t.Fatalf("expected save all to fail")
	}
	all, _ := s.LoadAll(ctx)
	if all[testKey].Gold != sampleRecord().Gold {
		t.Fatalf("failed save all leaked into memory: gold=%d", all[testKey].Gold)
	}
	if _, ok := all[fresh]; ok {
		t.Fatalf("failed save all kept a new record")
	}
}

func TestFileStore_Backup(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "rpg.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Put(context.Background(), testKey, sampleRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}
	var buf bytes.Buffer
	if err := s.Backup(&buf); err != nil {
		t.Fatalf("backup: %v", err)
	}
	doc, err := RestoreBackup(&buf)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(string(doc), "a quiet archer") {
		t.Fatalf("backup missing record: %s", doc)
	}
}

func TestOpen_Modes(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		opts Options
		want string
	}{
		{Options{Mode: "memory"}, "memory"},
		{Options{Mode: "", FilePath: filepath.Join(dir, "a.json")}, "file"},
		{Options{Mode: "sqlite", SQLitePath: filepath.Join(dir, "a.db"), CacheSize: 4}, "sqlite"},
	}
	for _, tc := range cases {
		s, mode, err := Open(tc.opts)
		if err != nil {
			t.Fatalf("open %q: %v", tc.opts.Mode, err)
		}
		if mode != tc.want {
			t.Fatalf("mode: want %s got %s", tc.want, mode)
		}
		_ = s.Close()
	}
	if _, _, err := Open(Options{Mode: "redis"}); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}
