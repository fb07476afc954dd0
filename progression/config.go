package progression

const (
	FavorMin = -500
	FavorMax = 500

	BaseAtk   = 10
	BaseMaxHP = 100
	BaseDef   = 0
	BaseLevel = 1

	// HPCap bounds potion recovery.
	HPCap = 500

	WagerRounds  = 5
	LethalRounds = 10

	CardMaxRunes = 1000
)

// Clamp bounds a favorability score.
func Clamp(v int) int {
	if v < FavorMin {
		return FavorMin
	}
	if v > FavorMax {
		return FavorMax
	}
	return v
}
