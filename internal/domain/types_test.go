package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDifficulty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Difficulty
		ok   bool
	}{
		{"", DifficultyRandom, true},
		{"random", DifficultyRandom, true},
		{" Easy ", DifficultyEasy, true},
		{"MEDIUM", DifficultyMedium, true},
		{"hard", DifficultyHard, true},
		{"extreme", Difficulty("extreme"), false},
	}
	for _, tc := range cases {
		got, ok := ParseDifficulty(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestDayUsesLocation(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 02:30 UTC is still the previous evening in New York.
	ts := time.Date(2024, 3, 5, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05", Day(ts, time.UTC))
	assert.Equal(t, "2024-03-04", Day(ts, ny))
	assert.Equal(t, "2024-03-05", Day(ts, nil))
}

func TestUserSolvedOn(t *testing.T) {
	t.Parallel()

	u := User{ID: "1"}
	assert.False(t, u.SolvedOn("2024-01-01", time.UTC))

	ts := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	u.LastSolve = &ts
	assert.True(t, u.SolvedOn("2024-01-01", time.UTC))
	assert.False(t, u.SolvedOn("2024-01-02", time.UTC))
}

func TestProblemURL(t *testing.T) {
	t.Parallel()

	p := Problem{Slug: "two-sum"}
	assert.Equal(t, "https://leetcode.com/problems/two-sum/", p.URL())
	assert.Equal(t, "EASY", DifficultyEasy.GraphQL())
	assert.Equal(t, "🎲", DifficultyRandom.Badge())
}
