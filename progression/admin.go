package progression

import "fmt"

type FavorMode string

const (
	FavorAdd FavorMode = "add"
	FavorSet FavorMode = "set"
)

func ParseFavorMode(raw string) (FavorMode, error) {
	switch FavorMode(raw) {
	case FavorAdd, "":
		return FavorAdd, nil
	case FavorSet:
		return FavorSet, nil
	default:
		return "", fmt.Errorf("unknown favorability mode %q", raw)
	}
}

// SetFavorability is an unchecked moderation override. The score is still
// clamped.
func SetFavorability(rec *Record, value int, mode FavorMode) (oldValue, newValue int) {
	oldValue = rec.Favorability
	if mode == FavorSet {
		rec.Favorability = Clamp(value)
	} else {
		rec.Favorability = Clamp(rec.Favorability + value)
	}
	return oldValue, rec.Favorability
}

// ResetCard clears the persona card and returns the old one.
func ResetCard(rec *Record) string {
	old := rec.Card
	rec.Card = ""
	return old
}

// Revive restores hp to max.
func Revive(rec *Record) (oldHP int) {
	oldHP = rec.RPG.HP
	rec.RPG.HP = rec.RPG.MaxHP
	return oldHP
}

// ResetRecord wipes all progression back to defaults.
func ResetRecord(rec *Record) {
	*rec = *NewRecord()
}
