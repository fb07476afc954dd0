package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"rpg-lite/apps/server/internal/arena"
	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/dice"
	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
	"rpg-lite/replay"
)

// RoundObserver is called with every resolved round, before the pause.
type RoundObserver func(sessionID string, r progression.Round)

type DuelReport struct {
	SessionID  string                 `json:"session_id"`
	Mode       progression.Mode       `json:"mode"`
	Seed       int64                  `json:"seed"`
	Challenger arena.Participant      `json:"challenger"`
	Target     arena.Participant      `json:"target"`
	Rounds     []progression.Round    `json:"rounds"`
	Log        []string               `json:"log"`
	Settlement progression.Settlement `json:"settlement"`
	Narration  string                 `json:"narration"`
	Degraded   bool                   `json:"degraded,omitempty"`
	// Replay reproduces Rounds and Settlement through replay.Generate.
	Replay replay.DuelSpec `json:"replay"`
}

// Challenge opens a duel invitation from a to target under a's bot.
func (e *Engine) Challenge(ctx context.Context, a Actor, target arena.Participant, targetIsBot bool) (arena.Challenge, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return arena.Challenge{}, err
	}
	switch {
	case targetIsBot:
		return arena.Challenge{}, progression.ErrInvalidTarget("bots cannot duel")
	case target.PlayerID == "" || target.PlayerID == a.PlayerID:
		return arena.Challenge{}, progression.ErrInvalidTarget("you cannot duel yourself")
	}
	if err := e.ensureStanding(ctx, bot, a.PlayerID, target.PlayerID); err != nil {
		return arena.Challenge{}, err
	}
	return e.arena.Open(bot.ID, a.participant(), target)
}

// ensureStanding rejects the duel when any participant has hp <= 0.
func (e *Engine) ensureStanding(ctx context.Context, bot catalog.Bot, players ...string) error {
	for _, id := range players {
		rec, err := e.snapshot(ctx, keyOf(bot, id))
		if err != nil {
			return err
		}
		if rec.RPG.HP <= 0 {
			return fmt.Errorf("%s: %w", id, progression.ErrIncapacitated)
		}
	}
	return nil
}

// pendingFor resolves an empty challenge id to the open challenge a is in.
func (e *Engine) pendingFor(bot catalog.Bot, a Actor, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	c, ok := e.arena.ChallengeOf(bot.ID, a.PlayerID)
	if !ok {
		return "", ErrNoPendingChallenge
	}
	return c.ID, nil
}

func (e *Engine) Accept(ctx context.Context, a Actor, challengeID string) (arena.Challenge, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return arena.Challenge{}, err
	}
	id, err := e.pendingFor(bot, a, challengeID)
	if err != nil {
		return arena.Challenge{}, err
	}
	return e.arena.Accept(id, a.PlayerID)
}

func (e *Engine) Decline(ctx context.Context, a Actor, challengeID string) (arena.Challenge, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return arena.Challenge{}, err
	}
	id, err := e.pendingFor(bot, a, challengeID)
	if err != nil {
		return arena.Challenge{}, err
	}
	return e.arena.Decline(id, a.PlayerID)
}

// StartDuel turns an accepted challenge into a session. Fighters are
// snapshotted now; the duel gets its own seeded source so it can be replayed.
func (e *Engine) StartDuel(ctx context.Context, a Actor, challengeID string, mode progression.Mode) (*arena.Session, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return nil, err
	}
	id, err := e.pendingFor(bot, a, challengeID)
	if err != nil {
		return nil, err
	}
	c, err := e.arena.Lookup(id)
	if err != nil {
		return nil, err
	}
	if c.Challenger.PlayerID != a.PlayerID {
		return nil, arena.ErrNotParticipant
	}

	crec, err := e.snapshot(ctx, keyOf(bot, c.Challenger.PlayerID))
	if err != nil {
		return nil, err
	}
	trec, err := e.snapshot(ctx, keyOf(bot, c.Target.PlayerID))
	if err != nil {
		return nil, err
	}
	for _, side := range []struct {
		id  string
		rec *progression.Record
	}{{c.Challenger.PlayerID, crec}, {c.Target.PlayerID, trec}} {
		if side.rec.RPG.HP <= 0 {
			return nil, fmt.Errorf("%s: %w", side.id, progression.ErrIncapacitated)
		}
	}

	seed := e.rng.Int63()
	if seed == 0 {
		seed = 1
	}
	src := dice.New(seed)
	duel := progression.NewDuel(mode,
		progression.FighterFrom(c.Challenger.PlayerID, c.Challenger.Name, crec),
		progression.FighterFrom(c.Target.PlayerID, c.Target.Name, trec),
		src)
	return e.arena.Start(id, a.PlayerID, mode, seed, duel, src)
}

// RunDuel drives a started session to the end. Rounds are handed to observe
// with a pause in between, holding no locks. Both records are then locked in
// key order and settled against their current state. A cancelled ctx aborts
// the duel without settlement. The session is always released.
func (e *Engine) RunDuel(ctx context.Context, sessionID string, observe RoundObserver) (*DuelReport, error) {
	sess, err := e.arena.Claim(sessionID)
	if err != nil {
		return nil, err
	}
	defer e.arena.Finish(sess.ID)

	for !sess.Duel.Finished() {
		r, err := sess.Duel.Step()
		if err != nil {
			break
		}
		if observe != nil {
			observe(sess.ID, r)
		}
		if r.Final || e.pause <= 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		t := time.NewTimer(e.pause)
		select {
		case <-ctx.Done():
			t.Stop()
			log.Printf("[Engine] duel %s aborted after round %d: %v", sess.ID, r.Number, ctx.Err())
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	bot := e.bots.Get(sess.Bot)
	ck := keyOf(bot, sess.Challenger.PlayerID)
	tk := keyOf(bot, sess.Target.PlayerID)
	result := sess.Duel.Result()

	st, entries, gold, err := e.settle(ctx, ck, tk, result, sess.Src)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		e.record(ctx, entry)
	}
	log.Printf("[Engine] duel %s settled mode=%s outcome=%s rounds=%d stolen=%d",
		sess.ID, result.Mode, result.Outcome, result.Rounds, st.Stolen)

	report := &DuelReport{
		SessionID:  sess.ID,
		Mode:       sess.Mode,
		Seed:       sess.Seed,
		Challenger: sess.Challenger,
		Target:     sess.Target,
		Rounds:     sess.Duel.Rounds(),
		Log:        sess.Duel.Log(),
		Settlement: st,
	}
	c0, t0 := sess.Duel.Initial()
	report.Replay = replay.DuelSpec{
		Mode:           sess.Mode.String(),
		Seed:           sess.Seed,
		Challenger:     c0,
		Target:         t0,
		ChallengerGold: gold[0],
		TargetGold:     gold[1],
	}
	report.Narration, report.Degraded = e.narrate(ctx, bot, bot.Persona(), duelPrompt(report), staticDuel(report))
	return report, nil
}

// settle applies the result to both records under their locks and returns
// the ledger entries to write once the locks are released, plus the gold
// both sides held going in.
func (e *Engine) settle(ctx context.Context, ck, tk progression.Key, result progression.DuelResult, src dice.Source) (progression.Settlement, []ledger.Entry, [2]int, error) {
	unlock := e.locks.Lock(ck, tk)
	defer unlock()

	cur, err := e.store.Get(ctx, ck)
	if err != nil {
		return progression.Settlement{}, nil, [2]int{}, fmt.Errorf("store get %s: %w", ck, err)
	}
	tur, err := e.store.Get(ctx, tk)
	if err != nil {
		return progression.Settlement{}, nil, [2]int{}, fmt.Errorf("store get %s: %w", tk, err)
	}
	crec, trec := cur.Clone(), tur.Clone()
	st := progression.Settle(result, crec, trec, src)
	// Both sides commit in one write or not at all.
	if err := e.store.SaveAll(ctx, map[progression.Key]*progression.Record{ck: crec, tk: trec}); err != nil {
		return progression.Settlement{}, nil, [2]int{}, fmt.Errorf("settle %s vs %s: %w", ck, tk, err)
	}

	detail := map[string]any{"mode": result.Mode.String(), "outcome": result.Outcome.String(), "rounds": result.Rounds}
	entries := []ledger.Entry{
		{
			Kind:      ledger.KindDuel,
			Player:    ck.PlayerID,
			Bot:       ck.BotID,
			GoldDelta: crec.Gold - cur.Gold,
			HPDelta:   crec.RPG.HP - cur.RPG.HP,
			Detail:    withSide(detail, "challenger", tk.PlayerID),
		},
		{
			Kind:      ledger.KindDuel,
			Player:    tk.PlayerID,
			Bot:       tk.BotID,
			GoldDelta: trec.Gold - tur.Gold,
			HPDelta:   trec.RPG.HP - tur.RPG.HP,
			Detail:    withSide(detail, "target", ck.PlayerID),
		},
	}
	return st, entries, [2]int{cur.Gold, tur.Gold}, nil
}

func withSide(detail map[string]any, side, opponent string) map[string]any {
	out := make(map[string]any, len(detail)+2)
	for k, v := range detail {
		out[k] = v
	}
	out["side"] = side
	out["opponent"] = opponent
	return out
}
