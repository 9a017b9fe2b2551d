package daily

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leetbot/internal/domain"
	"leetbot/internal/eventbus"
	"leetbot/internal/keylock"
	"leetbot/internal/storage"
	"leetbot/internal/transport"
	logx "leetbot/pkg/logx"
)

type Deps struct {
	Store     storage.Store
	Provider  Provider
	Publisher Publisher
	Bus       eventbus.Bus
	Log       logx.Logger

	// Location is the timezone that defines "today". It must match the
	// scheduler timezone.
	Location func() *time.Location
	Now      func() time.Time
}

type Coordinator struct {
	store    storage.Store
	provider Provider
	pub      Publisher
	bus      eventbus.Bus
	log      logx.Logger
	loc      func() *time.Location
	now      func() time.Time

	locks *keylock.Map
}

func NewCoordinator(d Deps) *Coordinator {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Location == nil {
		d.Location = func() *time.Location { return time.UTC }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Coordinator{
		store:    d.Store,
		provider: d.Provider,
		pub:      d.Publisher,
		bus:      d.Bus,
		log:      d.Log.With(logx.Component("daily")),
		loc:      d.Location,
		now:      d.Now,
		locks:    keylock.New(),
	}
}

// Today is the current calendar date in the posting timezone.
func (c *Coordinator) Today() string {
	return domain.Day(c.now(), c.loc())
}

// PostDailyProblem posts today's problem for guildID unless one is already
// recorded. The record is claimed before delivery, so a delivery failure
// still consumes the day. Errors are returned only for store failures.
func (c *Coordinator) PostDailyProblem(ctx context.Context, guildID, channelID string, d domain.Difficulty) (Result, error) {
	unlock, err := c.locks.Lock(ctx, guildID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	today := c.Today()
	log := c.log.With(logx.Guild(guildID), logx.String("date", today))

	rec, ok, err := c.store.GetDailyRecord(ctx, guildID, today)
	if err != nil {
		return Result{}, fmt.Errorf("read daily record: %w", err)
	}
	if ok {
		log.Debug("daily problem already posted", logx.String("problem", rec.ProblemID))
		c.emit(eventbus.TypeDailySkipped, guildID, channelID, today, rec.ProblemID, d, AlreadyPosted, false)
		return Result{Outcome: AlreadyPosted, Record: rec, Channel: channelID}, nil
	}

	p, ok := c.provider.FetchProblem(ctx, d)
	if !ok {
		log.Warn("daily problem fetch failed", logx.String("difficulty", string(d)))
		c.emit(eventbus.TypeDailyFailed, guildID, channelID, today, "", d, FetchFailed, false)
		return Result{Outcome: FetchFailed, Channel: channelID}, nil
	}

	rec = domain.DailyProblemRecord{
		GuildID:    guildID,
		Date:       today,
		ProblemID:  p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		Difficulty: d,
		CreatedAt:  c.now(),
	}
	if err := c.store.CreateDailyRecord(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrRecordExists) {
			existing, _, gerr := c.store.GetDailyRecord(ctx, guildID, today)
			if gerr != nil {
				return Result{}, fmt.Errorf("read daily record: %w", gerr)
			}
			return Result{Outcome: AlreadyPosted, Record: existing, Channel: channelID}, nil
		}
		log.Error("daily record persist failed", logx.Err(err))
		return Result{}, fmt.Errorf("persist daily record: %w", err)
	}

	res := Result{Record: rec, Problem: p, Channel: channelID}
	if err := c.pub.PublishProblem(ctx, Post{GuildID: guildID, ChannelID: channelID, Date: today, Problem: p, Difficulty: d}); err != nil {
		log.Warn("daily problem not delivered; record kept", logx.String("channel", channelID), logx.Bool("channel_unavailable", errors.Is(err, transport.ErrChannelUnavailable)), logx.Err(err))
		c.emit(eventbus.TypeDailyFailed, guildID, channelID, today, p.ID, d, ChannelUnavailable, false)
		res.Outcome = ChannelUnavailable
		return res, nil
	}

	log.Info("daily problem posted", logx.String("problem", p.ID), logx.String("slug", p.Slug), logx.String("difficulty", string(d)))
	c.emit(eventbus.TypeDailyPosted, guildID, channelID, today, p.ID, d, Posted, false)
	res.Outcome = Posted
	return res, nil
}

// PostForGuild runs PostDailyProblem with the guild's stored config, read
// now so edits apply to the next run.
func (c *Coordinator) PostForGuild(ctx context.Context, guildID string) (Result, error) {
	cfg, ok, err := c.store.GetConfig(ctx, guildID)
	if err != nil {
		return Result{}, fmt.Errorf("read config: %w", err)
	}
	if !ok {
		return Result{Outcome: NotConfigured}, nil
	}
	return c.PostDailyProblem(ctx, cfg.GuildID, cfg.ChannelID, cfg.Difficulty)
}

// TestPost fetches and posts a problem marked as a test. It ignores and
// never writes daily records.
func (c *Coordinator) TestPost(ctx context.Context, guildID string) (Result, error) {
	cfg, ok, err := c.store.GetConfig(ctx, guildID)
	if err != nil {
		return Result{}, fmt.Errorf("read config: %w", err)
	}
	if !ok {
		return Result{Outcome: NotConfigured}, nil
	}
	today := c.Today()

	p, ok := c.provider.FetchProblem(ctx, cfg.Difficulty)
	if !ok {
		c.emit(eventbus.TypeDailyFailed, guildID, cfg.ChannelID, today, "", cfg.Difficulty, FetchFailed, true)
		return Result{Outcome: FetchFailed, Channel: cfg.ChannelID}, nil
	}
	res := Result{Problem: p, Channel: cfg.ChannelID}
	if err := c.pub.PublishProblem(ctx, Post{GuildID: guildID, ChannelID: cfg.ChannelID, Date: today, Problem: p, Difficulty: cfg.Difficulty, Test: true}); err != nil {
		c.log.Warn("test post not delivered", logx.Guild(guildID), logx.String("channel", cfg.ChannelID), logx.Err(err))
		c.emit(eventbus.TypeDailyFailed, guildID, cfg.ChannelID, today, p.ID, cfg.Difficulty, ChannelUnavailable, true)
		res.Outcome = ChannelUnavailable
		return res, nil
	}
	c.emit(eventbus.TypeDailyPosted, guildID, cfg.ChannelID, today, p.ID, cfg.Difficulty, Posted, true)
	res.Outcome = Posted
	return res, nil
}

func (c *Coordinator) emit(typ, guildID, channelID, date, problemID string, d domain.Difficulty, o Outcome, test bool) {
	if c.bus == nil {
		return
	}
	now := c.now()
	c.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: PostEvent{
		GuildID:    guildID,
		ChannelID:  channelID,
		Date:       date,
		ProblemID:  problemID,
		Difficulty: string(d),
		Outcome:    o.String(),
		Test:       test,
		At:         now,
	}})
}
