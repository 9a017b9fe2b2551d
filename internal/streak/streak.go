// Package streak implements the per-user solve streak transitions.
//
// Transitions are pure: they take a user value and return the next one.
// Callers persist the result and must serialize read-modify-write per user.
package streak

import (
	"errors"
	"time"

	"leetbot/internal/domain"
)

// ErrAlreadyMarked is returned by ManualMark when today's solve is already counted.
var ErrAlreadyMarked = errors.New("streak: already marked today")

// Outcome is the signal produced by AutoDetect.
type Outcome int

const (
	NotSolved Outcome = iota
	SolvedNow
	AlreadyCounted
)

func (o Outcome) String() string {
	switch o {
	case SolvedNow:
		return "solved-now"
	case AlreadyCounted:
		return "already-counted"
	default:
		return "not-solved"
	}
}

// Counted reports whether u already has a solve counted for the day of now.
// A last solve later than now (clock moved backwards) also counts, so
// LastSolve never decreases.
func Counted(u domain.User, now time.Time, loc *time.Location) bool {
	if u.LastSolve == nil {
		return false
	}
	if u.LastSolve.After(now) {
		return true
	}
	return domain.Day(*u.LastSolve, loc) == domain.Day(now, loc)
}

// AutoDetect compares the provider's solved count with the stored snapshot.
// A higher count counts as today's solve, at most once per day.
func AutoDetect(u domain.User, currentCount int, now time.Time, loc *time.Location) (domain.User, Outcome) {
	if Counted(u, now, loc) {
		return u, AlreadyCounted
	}
	if currentCount <= u.SolvedCount {
		return u, NotSolved
	}
	u.SolvedCount = currentCount
	u.Streak++
	ts := now
	u.LastSolve = &ts
	return u, SolvedNow
}

// ManualMark counts today's solve without consulting the provider.
func ManualMark(u domain.User, now time.Time, loc *time.Location) (domain.User, error) {
	if Counted(u, now, loc) {
		return u, ErrAlreadyMarked
	}
	u.Streak++
	ts := now
	u.LastSolve = &ts
	return u, nil
}
