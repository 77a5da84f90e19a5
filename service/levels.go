package service

import "math"

// Experience awards
const (
	NotePostPoints = 15
	LikePoints     = 10
)

// Level maps an experience total to its tier: floor(sqrt(xp / 50)).
// Level 0 covers [0, 50), level 1 [50, 200), level 2 [200, 450), ...
func Level(xp int) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Sqrt(float64(xp) / 50))
}

// NextLevelXP is the experience threshold for the level after the given
// one: 50 * (level+1)^2. Display-only; always recomputed, never stored.
func NextLevelXP(level int) int {
	return 50 * (level + 1) * (level + 1)
}
