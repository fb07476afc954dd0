package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

type Kind string

const (
	KindPurchase    Kind = "purchase"
	KindExplore     Kind = "explore"
	KindDuel        Kind = "duel"
	KindFavor       Kind = "favorability"
	KindCard        Kind = "card"
	KindAdminFavor  Kind = "admin.favorability"
	KindAdminCard   Kind = "admin.reset_card"
	KindAdminRevive Kind = "admin.revive"
	KindAdminReset  Kind = "admin.reset_player"
	KindImport      Kind = "import"
)

// Entry is one economy or moderation change. Deltas are what actually
// changed on the record.
type Entry struct {
	At         time.Time      `json:"at"`
	Kind       Kind           `json:"kind"`
	Player     string         `json:"player"`
	Bot        string         `json:"bot"`
	GoldDelta  int            `json:"gold_delta,omitempty"`
	HPDelta    int            `json:"hp_delta,omitempty"`
	FavorDelta int            `json:"favor_delta,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Service records entries. Append must be cheap; the engine calls it after
// releasing record locks.
type Service interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Querier is implemented by backends that can read entries back.
type Querier interface {
	Recent(ctx context.Context, player, bot string, limit int) ([]Entry, error)
}

type noopService struct{}

func (noopService) Append(context.Context, Entry) error { return nil }
func (noopService) Close() error                        { return nil }

func NewNoop() Service { return noopService{} }

// Open picks a backend: "off"/"memory" discards, "jsonl" writes hourly
// zstd JSONL files under dir, "sqlite" writes to a local database at path.
func Open(mode, dir, path string) (Service, string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "off", "none", "memory":
		return NewNoop(), "noop", nil
	case "jsonl", "file":
		if strings.TrimSpace(dir) == "" {
			return nil, "", fmt.Errorf("ledger dir is required for jsonl mode")
		}
		return NewJSONLZstdWriter(dir, "ledger"), "jsonl", nil
	case "sqlite", "local":
		s, err := NewSQLite(path)
		if err != nil {
			return nil, "", err
		}
		return s, "sqlite", nil
	default:
		return nil, "", fmt.Errorf("unknown ledger mode %q", mode)
	}
}

// Record is a fire-and-log helper: ledger failures never fail a game action.
func Record(ctx context.Context, s Service, e Entry) {
	if s == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := s.Append(ctx, e); err != nil {
		log.Printf("[Ledger] append failed kind=%s player=%s bot=%s: %v", e.Kind, e.Player, e.Bot, err)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
