package replay

import (
	"strings"

	"rpg-lite/progression"
)

type normalizedSpec struct {
	mode       progression.Mode
	seed       int64
	challenger progression.Fighter
	target     progression.Fighter
	gold       [2]int
}

func normalizeSpec(spec DuelSpec) (normalizedSpec, error) {
	var out normalizedSpec
	mode, err := progression.ParseMode(spec.Mode)
	if err != nil {
		return out, specError("invalid_mode", "%v", err)
	}
	out.mode = mode
	// A zero seed would fall back to the clock and never replay.
	if spec.Seed == 0 {
		return out, specError("invalid_seed", "seed must be non-zero")
	}
	out.seed = spec.Seed

	for i, f := range []progression.Fighter{spec.Challenger, spec.Target} {
		side := "challenger"
		if i == 1 {
			side = "target"
		}
		f.PlayerID = strings.TrimSpace(f.PlayerID)
		if f.PlayerID == "" {
			return out, specError("invalid_fighter", "%s.player_id is required", side)
		}
		if f.MaxHP <= 0 {
			return out, specError("invalid_fighter", "%s.max_hp must be > 0", side)
		}
		if f.HP <= 0 {
			return out, specError("invalid_fighter", "%s enters the duel incapacitated", side)
		}
		if f.Atk < 0 || f.Def < 0 {
			return out, specError("invalid_fighter", "%s stats must not be negative", side)
		}
		if i == 0 {
			out.challenger = f
		} else {
			out.target = f
		}
	}
	if out.challenger.PlayerID == out.target.PlayerID {
		return out, specError("invalid_fighter", "a player cannot duel themselves")
	}
	if spec.ChallengerGold < 0 || spec.TargetGold < 0 {
		return out, specError("invalid_gold", "gold must not be negative")
	}
	out.gold = [2]int{spec.ChallengerGold, spec.TargetGold}
	return out, nil
}
