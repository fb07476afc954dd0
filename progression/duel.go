package progression

import (
	"fmt"
	"math"

	"rpg-lite/dice"
)

const (
	sideChallenger = 0
	sideTarget     = 1
)

// Fighter is the combat snapshot of one participant, taken when the duel
// starts.
type Fighter struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"max_hp"`
	Atk      int    `json:"atk"`
	Def      int    `json:"def"`
}

func FighterFrom(playerID, name string, rec *Record) Fighter {
	return Fighter{
		PlayerID: playerID,
		Name:     name,
		HP:       rec.RPG.HP,
		MaxHP:    rec.RPG.MaxHP,
		Atk:      rec.RPG.Atk,
		Def:      rec.RPG.Def,
	}
}

// Strike is one attack inside a round.
type Strike struct {
	Round      int        `json:"round"`
	Attacker   string     `json:"attacker"`
	Defender   string     `json:"defender"`
	Roll       int        `json:"roll"`
	Kind       StrikeKind `json:"kind"`
	Damage     int        `json:"damage"`
	SelfDamage int        `json:"self_damage"`
	AttackerHP int        `json:"attacker_hp"`
	DefenderHP int        `json:"defender_hp"`
}

func (s Strike) String() string {
	switch s.Kind {
	case StrikeFumble:
		return fmt.Sprintf("R%d %s rolls %d: FUMBLE, hurts self for %d (hp %d)",
			s.Round, s.Attacker, s.Roll, s.SelfDamage, s.AttackerHP)
	case StrikeCritical:
		return fmt.Sprintf("R%d %s rolls %d: CRITICAL on %s for %d (hp %d)",
			s.Round, s.Attacker, s.Roll, s.Defender, s.Damage, s.DefenderHP)
	default:
		return fmt.Sprintf("R%d %s rolls %d: hits %s for %d (hp %d)",
			s.Round, s.Attacker, s.Roll, s.Defender, s.Damage, s.DefenderHP)
	}
}

// Round is the result of one Step.
type Round struct {
	Number       int      `json:"number"`
	Strikes      []Strike `json:"strikes"`
	ChallengerHP int      `json:"challenger_hp"`
	TargetHP     int      `json:"target_hp"`
	Final        bool     `json:"final"`
}

// DuelResult is the terminal state handed to settlement.
type DuelResult struct {
	Mode         Mode    `json:"mode"`
	Outcome      Outcome `json:"outcome"`
	Rounds       int     `json:"rounds"`
	ChallengerHP int     `json:"challenger_hp"`
	TargetHP     int     `json:"target_hp"`
}

// Duel is a round-based state machine between two fighters. It is not safe
// for concurrent use.
type Duel struct {
	mode     Mode
	limit    int
	start    [2]Fighter
	fighters [2]Fighter
	src      dice.Source

	round   int
	rounds  []Round
	outcome Outcome
}

func NewDuel(mode Mode, challenger, target Fighter, src dice.Source) *Duel {
	return &Duel{
		mode:     mode,
		limit:    mode.RoundLimit(),
		start:    [2]Fighter{challenger, target},
		fighters: [2]Fighter{challenger, target},
		src:      src,
	}
}

func (d *Duel) Mode() Mode { return d.mode }

func (d *Duel) RoundLimit() int { return d.limit }

func (d *Duel) Finished() bool { return d.outcome != OutcomePending }

// Fighters returns the live combat state of both sides.
func (d *Duel) Fighters() (Fighter, Fighter) {
	return d.fighters[sideChallenger], d.fighters[sideTarget]
}

// Initial returns both fighters as they entered the duel.
func (d *Duel) Initial() (Fighter, Fighter) {
	return d.start[sideChallenger], d.start[sideTarget]
}

// Step resolves the next round: the challenger strikes, then the target
// strikes back if still standing.
func (d *Duel) Step() (Round, error) {
	if d.Finished() {
		return Round{}, ErrDuelFinished
	}
	d.round++
	r := Round{Number: d.round}

	r.Strikes = append(r.Strikes, d.strike(sideChallenger, sideTarget))
	if d.fighters[sideTarget].HP > 0 {
		r.Strikes = append(r.Strikes, d.strike(sideTarget, sideChallenger))
	}

	r.ChallengerHP = d.fighters[sideChallenger].HP
	r.TargetHP = d.fighters[sideTarget].HP
	if r.ChallengerHP <= 0 || r.TargetHP <= 0 || d.round >= d.limit {
		d.outcome = d.judge()
		r.Final = true
	}
	d.rounds = append(d.rounds, r)
	return r, nil
}

func (d *Duel) strike(atk, def int) Strike {
	a := &d.fighters[atk]
	b := &d.fighters[def]
	roll := dice.D20(d.src)
	s := Strike{
		Round:    d.round,
		Attacker: a.Name,
		Defender: b.Name,
		Roll:     roll,
	}
	switch roll {
	case 1:
		s.Kind = StrikeFumble
		s.SelfDamage = dice.Between(d.src, 1, 5)
		a.HP -= s.SelfDamage
	case 20:
		s.Kind = StrikeCritical
		raw := int(math.Round(float64(a.Atk+dice.Between(d.src, 1, 5)) * 1.5))
		s.Damage = max(1, raw-b.Def)
		b.HP -= s.Damage
	default:
		s.Kind = StrikeHit
		s.Damage = max(1, (a.Atk+roll)-(b.Def+dice.Between(d.src, 1, 10)))
		b.HP -= s.Damage
	}
	s.AttackerHP = a.HP
	s.DefenderHP = b.HP
	return s
}

// judge decides a finished duel. At the round limit the higher fraction of
// max hp wins; equal fractions are a draw.
func (d *Duel) judge() Outcome {
	c, t := d.fighters[sideChallenger], d.fighters[sideTarget]
	switch {
	case c.HP <= 0 && t.HP <= 0:
		return OutcomeMutualDefeat
	case t.HP <= 0:
		return OutcomeChallengerWins
	case c.HP <= 0:
		return OutcomeTargetWins
	}
	cf := int64(c.HP) * int64(max(1, t.MaxHP))
	tf := int64(t.HP) * int64(max(1, c.MaxHP))
	switch {
	case cf > tf:
		return OutcomeChallengerWins
	case tf > cf:
		return OutcomeTargetWins
	default:
		return OutcomeDraw
	}
}

// Run steps the duel to completion and returns every round.
func (d *Duel) Run() []Round {
	for !d.Finished() {
		if _, err := d.Step(); err != nil {
			break
		}
	}
	return d.Rounds()
}

func (d *Duel) Rounds() []Round {
	return append([]Round(nil), d.rounds...)
}

func (d *Duel) Result() DuelResult {
	return DuelResult{
		Mode:         d.mode,
		Outcome:      d.outcome,
		Rounds:       d.round,
		ChallengerHP: d.fighters[sideChallenger].HP,
		TargetHP:     d.fighters[sideTarget].HP,
	}
}

// Log renders one line per strike, in order.
func (d *Duel) Log() []string {
	out := make([]string, 0, len(d.rounds)*2)
	for _, r := range d.rounds {
		for _, s := range r.Strikes {
			out = append(out, s.String())
		}
	}
	return out
}
