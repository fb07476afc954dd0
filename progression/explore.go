package progression

import (
	"fmt"

	"rpg-lite/dice"
)

// CustomEvent is a community-written exploration encounter.
type CustomEvent struct {
	Author      string `json:"author" yaml:"author"`
	Description string `json:"description" yaml:"description"`
	SuccessText string `json:"success" yaml:"success"`
	FailText    string `json:"fail" yaml:"fail"`
}

const genericExploreSeed = "Exploring an unknown dungeon; something stirs ahead..."

// ExploreResult is one resolved exploration check.
type ExploreResult struct {
	Roll      int  `json:"roll"`
	Bonus     int  `json:"bonus"`
	FinalRoll int  `json:"final_roll"`
	Tier      Tier `json:"tier"`
	// GoldDelta is the tier's nominal gold change; GoldApplied is what was
	// actually applied after the zero floor.
	GoldDelta   int          `json:"gold_delta"`
	GoldApplied int          `json:"gold_applied"`
	HPDelta     int          `json:"hp_delta"`
	HPAfter     int          `json:"hp_after"`
	Seed        string       `json:"seed"`
	Event       *CustomEvent `json:"event,omitempty"`
}

// TierOf maps a final d100 roll to its band.
func TierOf(finalRoll int) Tier {
	switch {
	case finalRoll <= 5:
		return TierFumble
	case finalRoll <= 50:
		return TierFail
	case finalRoll <= 95:
		return TierSuccess
	default:
		return TierCritical
	}
}

// RollCheck draws d100, adds bonus and clamps into [1, 100].
func RollCheck(src dice.Source, bonus int) (roll, final int) {
	roll = dice.D100(src)
	final = roll + bonus
	if final < 1 {
		final = 1
	}
	if final > 100 {
		final = 100
	}
	return roll, final
}

// Explore resolves one exploration check against rec and applies it.
// The event draw happens before the roll and never changes the numbers.
func Explore(rec *Record, bonus int, src dice.Source, pool []CustomEvent) (ExploreResult, error) {
	if rec.RPG.HP <= 0 {
		return ExploreResult{}, ErrIncapacitated
	}

	res := ExploreResult{Bonus: bonus, Seed: genericExploreSeed}
	if len(pool) > 0 && src.Float64() < 0.5 {
		ev := pool[src.Intn(len(pool))]
		res.Event = &ev
		res.Seed = fmt.Sprintf("Custom encounter: %s (on success: %s; on failure: %s)", ev.Description, ev.SuccessText, ev.FailText)
	}

	res.Roll, res.FinalRoll = RollCheck(src, bonus)
	res.Tier = TierOf(res.FinalRoll)

	def := rec.RPG.Def
	switch res.Tier {
	case TierCritical:
		res.GoldDelta = dice.Between(src, 100, 200)
		res.HPDelta = 20
	case TierSuccess:
		res.GoldDelta = dice.Between(src, 30, 80)
	case TierFail:
		res.HPDelta = -max(1, dice.Between(src, 10, 20)-def)
	case TierFumble:
		res.GoldDelta = -dice.Between(src, 10, 30)
		res.HPDelta = -max(5, dice.Between(src, 30, 50)-def)
	}

	before := rec.Gold
	rec.Gold = max(0, rec.Gold+res.GoldDelta)
	rec.RPG.HP += res.HPDelta
	res.GoldApplied = rec.Gold - before
	res.HPAfter = rec.RPG.HP
	return res, nil
}
