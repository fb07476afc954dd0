package engine

import (
	"context"
	"errors"
	"strings"

	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/progression"
)

var ErrInvalidScope = errors.New("player and bot are required")

// Target addresses a record from the moderation side. Bot is the instance
// id or, when Scoped is set, the stored scope hash.
type Target struct {
	Bot    string `json:"bot"`
	Player string `json:"player"`
	Scoped bool   `json:"scoped,omitempty"`
}

func (e *Engine) targetKey(t Target) (progression.Key, error) {
	player, bot := strings.TrimSpace(t.Player), strings.TrimSpace(t.Bot)
	if player == "" || bot == "" {
		return progression.Key{}, ErrInvalidScope
	}
	if t.Scoped {
		return progression.Key{PlayerID: player, BotID: bot}, nil
	}
	return keyOf(e.bots.Get(bot), player), nil
}

type AdminResult struct {
	Key      progression.Key  `json:"key"`
	Old      any              `json:"old"`
	New      any              `json:"new"`
	View     progression.View `json:"view"`
	Operator string           `json:"operator,omitempty"`
}

func (e *Engine) adminMutate(ctx context.Context, t Target, operator string, kind ledger.Kind, fn func(rec *progression.Record) (oldV, newV any)) (*AdminResult, error) {
	key, err := e.targetKey(t)
	if err != nil {
		return nil, err
	}
	res := &AdminResult{Key: key, Operator: operator}
	var before progression.Record
	rec, err := e.mutate(ctx, key, func(rec *progression.Record) error {
		before = *rec
		res.Old, res.New = fn(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.View = rec.View()
	e.record(ctx, ledger.Entry{
		Kind:       kind,
		Player:     key.PlayerID,
		Bot:        key.BotID,
		GoldDelta:  rec.Gold - before.Gold,
		HPDelta:    rec.RPG.HP - before.RPG.HP,
		FavorDelta: rec.Favorability - before.Favorability,
		Detail:     map[string]any{"operator": operator},
	})
	return res, nil
}

func (e *Engine) SetFavorability(ctx context.Context, t Target, operator string, value int, mode progression.FavorMode) (*AdminResult, error) {
	return e.adminMutate(ctx, t, operator, ledger.KindAdminFavor, func(rec *progression.Record) (any, any) {
		return progression.SetFavorability(rec, value, mode)
	})
}

func (e *Engine) ResetCard(ctx context.Context, t Target, operator string) (*AdminResult, error) {
	return e.adminMutate(ctx, t, operator, ledger.KindAdminCard, func(rec *progression.Record) (any, any) {
		return progression.ResetCard(rec), ""
	})
}

func (e *Engine) Revive(ctx context.Context, t Target, operator string) (*AdminResult, error) {
	return e.adminMutate(ctx, t, operator, ledger.KindAdminRevive, func(rec *progression.Record) (any, any) {
		old := progression.Revive(rec)
		return old, rec.RPG.HP
	})
}

// ResetPlayer wipes the record back to a new player's defaults.
func (e *Engine) ResetPlayer(ctx context.Context, t Target, operator string) (*AdminResult, error) {
	return e.adminMutate(ctx, t, operator, ledger.KindAdminReset, func(rec *progression.Record) (any, any) {
		old := rec.View()
		progression.ResetRecord(rec)
		return old, rec.View()
	})
}

// Player reads a record without changing it. Unknown players read as the
// default record.
func (e *Engine) Player(ctx context.Context, t Target) (progression.Key, progression.View, error) {
	key, err := e.targetKey(t)
	if err != nil {
		return progression.Key{}, progression.View{}, err
	}
	rec, err := e.snapshot(ctx, key)
	if err != nil {
		return progression.Key{}, progression.View{}, err
	}
	return key, rec.View(), nil
}

// History returns the newest ledger entries for a record when the ledger
// backend supports reads.
func (e *Engine) History(ctx context.Context, t Target, limit int) ([]ledger.Entry, error) {
	key, err := e.targetKey(t)
	if err != nil {
		return nil, err
	}
	q, ok := e.ledger.(ledger.Querier)
	if !ok {
		return nil, ErrHistoryUnavailable
	}
	return q.Recent(ctx, key.PlayerID, key.BotID, limit)
}
