package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rpg-lite/apps/server/internal/arena"
	"rpg-lite/apps/server/internal/eventpool"
	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/apps/server/internal/oracle"
	"rpg-lite/apps/server/internal/store"
	"rpg-lite/dice"
	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
)

// FallbackNarration replaces narration when the oracle cannot be reached.
// The state change it would have described is already committed.
const FallbackNarration = "(the narrator is silent for now)"

const (
	DefaultRoundPause = 1500 * time.Millisecond
	maxHistoryLines   = 40
)

var (
	ErrUnknownItem         = errors.New("unknown item")
	ErrModuleDisabled      = errors.New("module disabled for this bot")
	ErrCardTooLong         = errors.New("card is too long")
	ErrHistoryUnavailable  = errors.New("ledger backend cannot be queried")
	ErrBadReminder         = errors.New("bad reminder delay")
	ErrBallotOtherBot      = fmt.Errorf("%w: ballot belongs to another bot", eventpool.ErrBallotNotFound)
	ErrNoPendingChallenge  = fmt.Errorf("%w: no challenge addressed to you", arena.ErrChallengeNotFound)
	errRecordStoreRequired = errors.New("engine: store is required")
)

// Actor is the player a request comes from, under the bot it was sent to.
type Actor struct {
	Bot      string `json:"bot"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

func (a Actor) label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.PlayerID
}

func (a Actor) participant() arena.Participant {
	return arena.Participant{PlayerID: a.PlayerID, Name: a.Name}
}

type Config struct {
	Store   store.Store
	Items   *catalog.Items
	Bots    *catalog.Bots
	Pool    eventpool.Pool
	Ballots *eventpool.Ballots
	Arena   *arena.Arena
	Oracle  oracle.Narrator
	Ledger  ledger.Service

	// Seed drives the engine's shared dice. Zero seeds from the clock.
	Seed int64
	// RoundPause is the delay between pushed duel rounds. Negative disables it.
	RoundPause time.Duration
}

// Engine runs every player-facing operation: it locks the affected records,
// applies the progression rules, persists, and narrates outside the locks.
type Engine struct {
	store   store.Store
	items   *catalog.Items
	bots    *catalog.Bots
	pool    eventpool.Pool
	ballots *eventpool.Ballots
	arena   *arena.Arena
	oracle  oracle.Narrator
	ledger  ledger.Service
	rng     *dice.Locked
	pause   time.Duration
	locks   *keyedMutex
	now     func() time.Time
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errRecordStoreRequired
	}
	e := &Engine{
		store:   cfg.Store,
		items:   cfg.Items,
		bots:    cfg.Bots,
		pool:    cfg.Pool,
		ballots: cfg.Ballots,
		arena:   cfg.Arena,
		oracle:  cfg.Oracle,
		ledger:  cfg.Ledger,
		rng:     dice.NewLocked(cfg.Seed),
		pause:   cfg.RoundPause,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
	if e.items == nil {
		e.items = catalog.NewItems(nil)
	}
	if e.bots == nil {
		e.bots = catalog.NewBots(catalog.Bot{}, nil)
	}
	if e.pool == nil {
		e.pool = eventpool.NewMemory(nil)
	}
	if e.ballots == nil {
		e.ballots = eventpool.NewBallots(e.pool)
	}
	if e.arena == nil {
		e.arena = arena.New(arena.DefaultChallengeTTL)
	}
	if e.oracle == nil {
		e.oracle = oracle.New(nil)
	}
	if e.ledger == nil {
		e.ledger = ledger.NewNoop()
	}
	if e.pause == 0 {
		e.pause = DefaultRoundPause
	}
	return e, nil
}

// Bot resolves the settings of a bot instance.
func (e *Engine) Bot(id string) catalog.Bot { return e.bots.Get(id) }

func (e *Engine) Items() *catalog.Items { return e.items }

func (e *Engine) Arena() *arena.Arena { return e.arena }

func keyOf(bot catalog.Bot, playerID string) progression.Key {
	return progression.Key{PlayerID: strings.TrimSpace(playerID), BotID: bot.Scope()}
}

func (e *Engine) gate(bot catalog.Bot, modules ...string) error {
	for _, m := range modules {
		if !bot.Enabled(m) {
			return fmt.Errorf("%w: %s", ErrModuleDisabled, m)
		}
	}
	return nil
}

// snapshot reads a record under its lock and returns a private copy.
func (e *Engine) snapshot(ctx context.Context, key progression.Key) (*progression.Record, error) {
	unlock := e.locks.Lock(key)
	defer unlock()
	rec, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", key, err)
	}
	return rec.Clone(), nil
}

// mutate runs fn on a fresh copy of the record under its lock and persists
// the copy only when fn succeeds.
func (e *Engine) mutate(ctx context.Context, key progression.Key, fn func(rec *progression.Record) error) (*progression.Record, error) {
	unlock := e.locks.Lock(key)
	defer unlock()
	rec, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", key, err)
	}
	next := rec.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, key, next); err != nil {
		return nil, fmt.Errorf("store put %s: %w", key, err)
	}
	return next.Clone(), nil
}

// narrate asks the oracle for text. Chat-disabled bots get the static text
// instead; oracle failures get FallbackNarration. Tags in the reply are
// stripped and never applied.
func (e *Engine) narrate(ctx context.Context, bot catalog.Bot, system, user, static string) (string, bool) {
	if !bot.Enabled(catalog.ModuleChat) {
		return static, false
	}
	text, err := e.oracle.Narrate(ctx, system, user, oracleOpts(bot))
	if err != nil {
		log.Printf("[Engine] narration degraded bot=%s: %v", bot.ID, err)
		return FallbackNarration, true
	}
	_, cleaned := progression.ParseDelta(text)
	return cleaned, false
}

func oracleOpts(bot catalog.Bot) oracle.Options {
	return oracle.Options{Temperature: bot.Temp()}
}

func (e *Engine) record(ctx context.Context, entry ledger.Entry) {
	if entry.At.IsZero() {
		entry.At = e.now().UTC()
	}
	ledger.Record(ctx, e.ledger, entry)
}

func trimHistory(history []string) []string {
	out := make([]string, 0, len(history))
	for _, line := range history {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) > maxHistoryLines {
		out = out[len(out)-maxHistoryLines:]
	}
	return out
}
