package domain

import "strings"

// Difficulty is a problem tier. DifficultyRandom selects the platform's
// official daily challenge instead of sampling.
type Difficulty string

const (
	DifficultyRandom Difficulty = "random"
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DefaultDifficulty is used when a guild does not pick one.
const DefaultDifficulty = DifficultyRandom

var difficulties = []Difficulty{DifficultyRandom, DifficultyEasy, DifficultyMedium, DifficultyHard}

// Difficulties returns all accepted values in display order.
func Difficulties() []Difficulty {
	return append([]Difficulty(nil), difficulties...)
}

// ParseDifficulty normalizes s. Empty input maps to DefaultDifficulty.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultDifficulty, true
	}
	d := Difficulty(s)
	return d, d.Valid()
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyRandom, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Badge is the emoji shown next to the difficulty in posts.
func (d Difficulty) Badge() string {
	switch d {
	case DifficultyEasy:
		return "🟢"
	case DifficultyMedium:
		return "🟡"
	case DifficultyHard:
		return "🔴"
	default:
		return "🎲"
	}
}

// Label is the human name used by view_config.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "Easy"
	case DifficultyMedium:
		return "Medium"
	case DifficultyHard:
		return "Hard"
	default:
		return "Random (LeetCode's daily)"
	}
}

// GraphQL returns the upstream enum for a named difficulty.
func (d Difficulty) GraphQL() string {
	return strings.ToUpper(string(d))
}
