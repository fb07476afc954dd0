package replay

import (
	"fmt"

	"rpg-lite/dice"
	"rpg-lite/progression"
)

// Generate reruns the duel described by spec and settles it against records
// holding the recorded gold.
func Generate(spec DuelSpec) (*Tape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	src := dice.New(ns.seed)
	duel := progression.NewDuel(ns.mode, ns.challenger, ns.target, src)
	duel.Run()
	res := duel.Result()
	if res.Outcome == progression.OutcomePending {
		return nil, specError("unfinished", "duel stopped after %d rounds without an outcome", res.Rounds)
	}

	crec, trec := recordFor(ns.challenger, ns.gold[0]), recordFor(ns.target, ns.gold[1])
	st := progression.Settle(res, crec, trec, src)

	return &Tape{
		TapeVersion:  TapeVersion,
		Mode:         ns.mode.String(),
		Seed:         ns.seed,
		Rounds:       res.Rounds,
		Outcome:      res.Outcome.String(),
		ChallengerHP: st.ChallengerHP,
		TargetHP:     st.TargetHP,
		Stolen:       st.Stolen,
		LoserReset:   st.LoserReset,
		Log:          duel.Log(),
	}, nil
}

func recordFor(f progression.Fighter, gold int) *progression.Record {
	rec := progression.NewRecord()
	rec.Gold = gold
	rec.RPG.HP = f.HP
	rec.RPG.MaxHP = f.MaxHP
	rec.RPG.Atk = f.Atk
	rec.RPG.Def = f.Def
	return rec
}

// Verify regenerates spec and checks that tape matches it line for line.
func Verify(spec DuelSpec, tape *Tape) error {
	if tape == nil {
		return specError("missing_tape", "no tape to verify")
	}
	if tape.TapeVersion != TapeVersion {
		return specError("tape_version", "tape version %d, want %d", tape.TapeVersion, TapeVersion)
	}
	want, err := Generate(spec)
	if err != nil {
		return err
	}
	for i := 0; i < max(len(want.Log), len(tape.Log)); i++ {
		var got, exp string
		if i < len(tape.Log) {
			got = tape.Log[i]
		}
		if i < len(want.Log) {
			exp = want.Log[i]
		}
		if got != exp {
			return &ReplayError{Reason: "log_mismatch", Message: fmt.Sprintf("got %q, want %q", got, exp), Line: i}
		}
	}
	switch {
	case tape.Outcome != want.Outcome:
		return specError("outcome_mismatch", "got %s, want %s", tape.Outcome, want.Outcome)
	case tape.Stolen != want.Stolen || tape.LoserReset != want.LoserReset:
		return specError("settlement_mismatch", "got stolen=%d reset=%v, want stolen=%d reset=%v",
			tape.Stolen, tape.LoserReset, want.Stolen, want.LoserReset)
	case tape.ChallengerHP != want.ChallengerHP || tape.TargetHP != want.TargetHP:
		return specError("hp_mismatch", "got %d/%d, want %d/%d",
			tape.ChallengerHP, tape.TargetHP, want.ChallengerHP, want.TargetHP)
	}
	return nil
}
