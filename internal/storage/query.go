package storage

import (
	"context"
	"sort"
	"time"

	"leetbot/internal/domain"
)

// ActiveWindow is how far back a solve keeps a user "active".
const ActiveWindow = 7 * 24 * time.Hour

// TopUsersByStreak returns up to n users with the highest streak. Ties keep
// insertion order.
func TopUsersByStreak(ctx context.Context, st Store, n int) ([]domain.User, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Streak > users[j].Streak })
	if n > 0 && len(users) > n {
		users = users[:n]
	}
	return users, nil
}

// ActiveUsers returns users whose last solve is within ActiveWindow of now,
// most recent first.
func ActiveUsers(ctx context.Context, st Store, now time.Time) ([]domain.User, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-ActiveWindow)
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.LastSolve != nil && !u.LastSolve.Before(cutoff) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSolve.After(*out[j].LastSolve) })
	return out, nil
}

// TodaySolvers returns users whose last solve falls on the calendar day of
// now in loc, in insertion order. total is the number of registered users.
func TodaySolvers(ctx context.Context, st Store, now time.Time, loc *time.Location) (solvers []domain.User, total int, err error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	today := domain.Day(now, loc)
	for _, u := range users {
		if u.SolvedOn(today, loc) {
			solvers = append(solvers, u)
		}
	}
	return solvers, len(users), nil
}
