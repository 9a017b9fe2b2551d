package bot

import (
	"context"
	"fmt"

	"leetbot/internal/domain"
	"leetbot/internal/storage"
	"leetbot/internal/transport"
)

const boardSize = 5

func (s *Service) todaySolvers(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	now, loc := s.now(), s.loc()
	var cur *domain.DailyProblemRecord
	rec, ok, err := s.store.GetDailyRecord(ctx, inv.GuildID, domain.Day(now, loc))
	if err != nil {
		return transport.Reply{}, fmt.Errorf("read daily record: %w", err)
	}
	if ok {
		cur = &rec
	}
	solvers, total, err := storage.TodaySolvers(ctx, s.store, now, loc)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("list solvers: %w", err)
	}
	return embed(solversEmbed(cur, solvers, total), false), nil
}

func (s *Service) leaderboard(ctx context.Context, _ transport.Invocation) (transport.Reply, error) {
	now := s.now()
	top, err := storage.TopUsersByStreak(ctx, s.store, boardSize)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("top users: %w", err)
	}
	active, err := storage.ActiveUsers(ctx, s.store, now)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("active users: %w", err)
	}
	if len(active) > boardSize {
		active = active[:boardSize]
	}
	return embed(leaderboardEmbed(top, active, now), false), nil
}

func (s *Service) help(context.Context, transport.Invocation) (transport.Reply, error) {
	return embed(helpEmbed(s.specs), true), nil
}
