package progression

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier 检定结果档位
type Tier byte

const (
	TierFumble   Tier = 1
	TierFail     Tier = 2
	TierSuccess  Tier = 3
	TierCritical Tier = 4
)

var TierDictionary = map[Tier]string{
	TierFumble:   "FUMBLE",
	TierFail:     "FAIL",
	TierSuccess:  "SUCCESS",
	TierCritical: "CRITICAL",
}

func (t Tier) String() string {
	if s, ok := TierDictionary[t]; ok {
		return s
	}
	return "UNKNOWN"
}

func (t Tier) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

// Category 商品分类
type Category string

const (
	CategoryWeapon Category = "weapon"
	CategoryArmor  Category = "armor"
	CategoryPotion Category = "potion"
	CategoryTool   Category = "tool"
	CategoryGift   Category = "gift"
)

var Categories = []Category{CategoryWeapon, CategoryArmor, CategoryPotion, CategoryTool, CategoryGift}

func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown item category %q", raw)
}

// Special names an item effect that is not a plain stat bonus.
type Special string

const (
	SpecialNone       Special = ""
	SpecialRedemption Special = "redemption"
	SpecialLetter     Special = "letter"
)

// Mode 决斗模式
type Mode byte

const (
	ModeWager  Mode = 1
	ModeLethal Mode = 2
)

var ModeDictionary = map[Mode]string{
	ModeWager:  "wager",
	ModeLethal: "lethal",
}

func (m Mode) String() string {
	if s, ok := ModeDictionary[m]; ok {
		return s
	}
	return "unknown"
}

func (m Mode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// RoundLimit is the number of rounds before a duel is called on hp.
func (m Mode) RoundLimit() int {
	if m == ModeLethal {
		return LethalRounds
	}
	return WagerRounds
}

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wager", "money":
		return ModeWager, nil
	case "lethal", "life":
		return ModeLethal, nil
	default:
		return 0, fmt.Errorf("unknown duel mode %q", raw)
	}
}

// StrikeKind classifies one attack roll in a duel.
type StrikeKind byte

const (
	StrikeFumble   StrikeKind = 1
	StrikeHit      StrikeKind = 2
	StrikeCritical StrikeKind = 3
)

var StrikeKindDictionary = map[StrikeKind]string{
	StrikeFumble:   "FUMBLE",
	StrikeHit:      "HIT",
	StrikeCritical: "CRITICAL",
}

func (k StrikeKind) String() string {
	if s, ok := StrikeKindDictionary[k]; ok {
		return s
	}
	return "UNKNOWN"
}

func (k StrikeKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

// Outcome is the terminal state of a duel.
type Outcome byte

const (
	OutcomePending        Outcome = 0
	OutcomeChallengerWins Outcome = 1
	OutcomeTargetWins     Outcome = 2
	OutcomeMutualDefeat   Outcome = 3
	OutcomeDraw           Outcome = 4
)

var OutcomeDictionary = map[Outcome]string{
	OutcomePending:        "pending",
	OutcomeChallengerWins: "challenger_wins",
	OutcomeTargetWins:     "target_wins",
	OutcomeMutualDefeat:   "mutual_defeat",
	OutcomeDraw:           "draw",
}

func (o Outcome) String() string {
	if s, ok := OutcomeDictionary[o]; ok {
		return s
	}
	return "unknown"
}

func (o Outcome) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

// HasWinner reports whether exactly one side won.
func (o Outcome) HasWinner() bool {
	return o == OutcomeChallengerWins || o == OutcomeTargetWins
}
