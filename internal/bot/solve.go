package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leetbot/internal/domain"
	"leetbot/internal/eventbus"
	"leetbot/internal/streak"
	"leetbot/internal/transport"
	logx "leetbot/pkg/logx"
)

const msgUnavailable = "Could not check right now (LeetCode unavailable)"

func (s *Service) status(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	now, loc := s.now(), s.loc()
	u, rec, err := s.solveContext(ctx, inv, now, loc)
	if err != nil || rec == nil {
		return text(msgNoProblem), err
	}
	if streak.Counted(u, now, loc) {
		return text(fmt.Sprintf("You've already solved today's problem! Streak: %d", u.Streak)), nil
	}

	count, ok := s.solved.FetchSolvedCount(ctx, u.Username)
	if !ok {
		s.log.Warn("solved count unavailable", logx.User(u.ID), logx.String("username", u.Username))
		return embed(statusEmbed(rec.Title, u.Streak, msgUnavailable), true), nil
	}

	var outcome streak.Outcome
	u, err = s.updateUser(ctx, inv.UserID, func(cur domain.User) (domain.User, bool) {
		next, o := streak.AutoDetect(cur, count, now, loc)
		outcome = o
		return next, o == streak.SolvedNow
	})
	if err != nil {
		return transport.Reply{}, err
	}

	switch outcome {
	case streak.AlreadyCounted:
		return text(fmt.Sprintf("You've already solved today's problem! Streak: %d", u.Streak)), nil
	case streak.NotSolved:
		return embed(statusEmbed(rec.Title, u.Streak, "Not solved yet"), true), nil
	}
	s.afterSolve(ctx, inv, *rec, u, domain.SolveAuto, now)
	return text(fmt.Sprintf("You've solved today's problem! Streak: %d", u.Streak)), nil
}

func (s *Service) markSolved(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	now, loc := s.now(), s.loc()
	_, rec, err := s.solveContext(ctx, inv, now, loc)
	if err != nil || rec == nil {
		return text(msgNoProblem), err
	}

	already := false
	u, err := s.updateUser(ctx, inv.UserID, func(cur domain.User) (domain.User, bool) {
		next, err := streak.ManualMark(cur, now, loc)
		if errors.Is(err, streak.ErrAlreadyMarked) {
			already = true
			return cur, false
		}
		return next, true
	})
	if err != nil {
		return transport.Reply{}, err
	}
	if already {
		return text(fmt.Sprintf("You've already marked today's problem as solved! Streak: %d", u.Streak)), nil
	}
	s.afterSolve(ctx, inv, *rec, u, domain.SolveManual, now)
	return text(fmt.Sprintf("Marked today's problem as solved! Streak: %d", u.Streak)), nil
}

// solveContext loads the linked user and the guild's record for today. rec
// is nil when nothing was posted today.
func (s *Service) solveContext(ctx context.Context, inv transport.Invocation, now time.Time, loc *time.Location) (domain.User, *domain.DailyProblemRecord, error) {
	u, found, err := s.store.GetUser(ctx, inv.UserID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("read user: %w", err)
	}
	if !found || !u.Linked() {
		return domain.User{}, nil, &NotConfiguredError{Msg: msgNeedSetup}
	}
	rec, ok, err := s.store.GetDailyRecord(ctx, inv.GuildID, domain.Day(now, loc))
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("read daily record: %w", err)
	}
	if !ok {
		return u, nil, nil
	}
	return u, &rec, nil
}

// updateUser applies fn to the stored user under the per-user lock and saves
// the result when fn reports a change.
func (s *Service) updateUser(ctx context.Context, id string, fn func(domain.User) (domain.User, bool)) (domain.User, error) {
	unlock, err := s.users.Lock(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	defer unlock()

	u, found, err := s.store.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("read user: %w", err)
	}
	if !found {
		return domain.User{}, &NotConfiguredError{Msg: msgNeedSetup}
	}
	next, changed := fn(u)
	if !changed {
		return u, nil
	}
	if err := s.store.SaveUser(ctx, next); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return next, nil
}

// afterSolve writes the audit entry and announces the solve. Both are best
// effort once the streak is saved.
func (s *Service) afterSolve(ctx context.Context, inv transport.Invocation, rec domain.DailyProblemRecord, u domain.User, src domain.SolveSource, now time.Time) {
	log := s.log.With(logx.User(u.ID), logx.Guild(inv.GuildID))
	entry := domain.SolveEntry{
		UserID:    u.ID,
		GuildID:   inv.GuildID,
		Date:      rec.Date,
		ProblemID: rec.ProblemID,
		Source:    src,
		Streak:    u.Streak,
		At:        now,
	}
	if err := s.store.AppendSolve(ctx, entry); err != nil {
		log.Error("solve audit write failed", logx.Err(err))
	}
	log.Info("solve counted", logx.String("source", string(src)), logx.Int("streak", u.Streak))
	s.publish(eventbus.TypeSolveCounted, SolveEvent{UserID: u.ID, GuildID: inv.GuildID, Date: rec.Date, Source: src, Streak: u.Streak})

	cfg, ok, err := s.store.GetConfig(ctx, inv.GuildID)
	if err != nil || !ok {
		return
	}
	if err := s.announce.announceSolve(ctx, cfg.ChannelID, u.ID, rec.Title, u.Streak); err != nil {
		log.Warn("solve announcement not delivered", logx.String("channel", cfg.ChannelID), logx.Err(err))
	}
}
