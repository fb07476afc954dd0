package progression

import (
	"math"

	"rpg-lite/dice"
)

// Settlement describes what a finished duel did to both records.
type Settlement struct {
	Outcome      Outcome `json:"outcome"`
	Mode         Mode    `json:"mode"`
	Stolen       int     `json:"stolen"`
	LoserReset   bool    `json:"loser_reset"`
	ChallengerHP int     `json:"challenger_hp"`
	TargetHP     int     `json:"target_hp"`
}

// Settle applies a duel result to fresh copies of both records. Callers must
// hold both record locks. Hp is synced raw, so it may be negative.
func Settle(res DuelResult, challenger, target *Record, src dice.Source) Settlement {
	st := Settlement{Outcome: res.Outcome, Mode: res.Mode}
	challenger.RPG.HP = res.ChallengerHP
	target.RPG.HP = res.TargetHP

	if res.Outcome.HasWinner() {
		winner, loser := challenger, target
		if res.Outcome == OutcomeTargetWins {
			winner, loser = target, challenger
		}
		switch res.Mode {
		case ModeWager:
			st.Stolen = WagerSteal(loser.Gold, src)
			loser.Gold -= st.Stolen
			winner.Gold += st.Stolen
		case ModeLethal:
			*loser = *NewRecord()
			st.LoserReset = true
		}
	}

	st.ChallengerHP = challenger.RPG.HP
	st.TargetHP = target.RPG.HP
	return st
}

// WagerSteal is the gold a wager winner takes: round(gold * U[0.1, 0.5]),
// never more than the loser holds.
func WagerSteal(loserGold int, src dice.Source) int {
	if loserGold <= 0 {
		return 0
	}
	n := int(math.Round(float64(loserGold) * dice.Uniform(src, 0.1, 0.5)))
	return max(0, min(n, loserGold))
}
