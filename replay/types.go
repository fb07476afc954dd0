// Package replay regenerates duels from their seed. A DuelSpec is what the
// engine reports for every settled duel; Generate turns it back into the
// same rounds and the same settlement.
package replay

import "rpg-lite/progression"

const TapeVersion = 1

type DuelSpec struct {
	Mode           string              `json:"mode"`
	Seed           int64               `json:"seed"`
	Challenger     progression.Fighter `json:"challenger"`
	Target         progression.Fighter `json:"target"`
	ChallengerGold int                 `json:"challenger_gold"`
	TargetGold     int                 `json:"target_gold"`
}

type Tape struct {
	TapeVersion  int      `json:"tape_version"`
	Mode         string   `json:"mode"`
	Seed         int64    `json:"seed"`
	Rounds       int      `json:"rounds"`
	Outcome      string   `json:"outcome"`
	ChallengerHP int      `json:"challenger_hp"`
	TargetHP     int      `json:"target_hp"`
	Stolen       int      `json:"stolen"`
	LoserReset   bool     `json:"loser_reset"`
	Log          []string `json:"log"`
}
