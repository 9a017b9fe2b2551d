package bot

import (
	"context"
	"errors"
	"time"

	"leetbot/internal/daily"
	"leetbot/internal/domain"
	"leetbot/internal/eventbus"
	"leetbot/internal/keylock"
	"leetbot/internal/storage"
	"leetbot/internal/transport"
	logx "leetbot/pkg/logx"
)

// SolvedCounter looks up a user's aggregate solved count. ok=false means
// the count is unavailable, never zero.
type SolvedCounter interface {
	FetchSolvedCount(ctx context.Context, username string) (int, bool)
}

// Poster is the posting side used by post_now and test_post.
type Poster interface {
	PostForGuild(ctx context.Context, guildID string) (daily.Result, error)
	TestPost(ctx context.Context, guildID string) (daily.Result, error)
}

// Schedules keeps guild triggers in step with stored configs.
type Schedules interface {
	Upsert(cfg domain.GuildConfig) error
	Remove(guildID string) bool
	Next(guildID string) (time.Time, bool)
}

type Deps struct {
	Store     storage.Store
	Solved    SolvedCounter
	Poster    Poster
	Schedules Schedules
	Sender    transport.Sender
	Bus       eventbus.Bus
	Log       logx.Logger

	Location func() *time.Location
	Now      func() time.Time
}

type Service struct {
	store     storage.Store
	solved    SolvedCounter
	poster    Poster
	schedules Schedules
	announce  *Announcer
	bus       eventbus.Bus
	log       logx.Logger
	loc       func() *time.Location
	now       func() time.Time

	// users serializes read-modify-write of one user's record; guilds keeps
	// a guild's stored config and its schedule changing together.
	users    *keylock.Map
	guilds   *keylock.Map
	commands map[string]command
	specs    []transport.CommandSpec
}

type command struct {
	spec      transport.CommandSpec
	guildOnly bool
	denied    string
	run       func(ctx context.Context, inv transport.Invocation) (transport.Reply, error)
}

// CommandEvent is the Data of command.served events.
type CommandEvent struct {
	Command  string        `json:"command"`
	GuildID  string        `json:"guild_id,omitempty"`
	UserID   string        `json:"user_id"`
	Source   string        `json:"source,omitempty"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// SolveEvent is the Data of solve.counted events.
type SolveEvent struct {
	UserID  string             `json:"user_id"`
	GuildID string             `json:"guild_id"`
	Date    string             `json:"date"`
	Source  domain.SolveSource `json:"source"`
	Streak  int                `json:"streak"`
}

func New(d Deps) *Service {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Location == nil {
		d.Location = func() *time.Location { return time.UTC }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Service{
		store:     d.Store,
		solved:    d.Solved,
		poster:    d.Poster,
		schedules: d.Schedules,
		announce:  NewAnnouncer(d.Sender),
		bus:       d.Bus,
		log:       d.Log.With(logx.Component("bot")),
		loc:       d.Location,
		now:       d.Now,
		users:     keylock.New(),
		guilds:    keylock.New(),
	}
	s.register()
	return s
}

// Commands lists the command surface in display order.
func (s *Service) Commands() []transport.CommandSpec {
	return append([]transport.CommandSpec(nil), s.specs...)
}

// Handle serves one invocation. It never returns an empty reply.
func (s *Service) Handle(ctx context.Context, inv transport.Invocation) transport.Reply {
	start := time.Now()
	cmd, ok := s.commands[inv.Command]
	if !ok {
		return text(msgUnknown)
	}
	log := s.log.With(logx.String("cmd", inv.Command), logx.Guild(inv.GuildID), logx.User(inv.UserID))

	var (
		reply transport.Reply
		err   error
	)
	switch {
	case cmd.guildOnly && inv.GuildID == "":
		err = errGuildOnly
		reply = text(msgGuildOnly)
	case cmd.spec.AdminOnly && !inv.IsAdmin:
		reply = text(cmd.denied)
		s.served(inv, "denied", start)
		return reply
	default:
		reply, err = cmd.run(ctx, inv)
	}

	var ve *ValidationError
	var ne *NotConfiguredError
	switch {
	case err == nil:
	case errors.As(err, &ve):
		reply = text(ve.Msg)
	case errors.As(err, &ne):
		reply = text(ne.Msg)
	case errors.Is(err, errGuildOnly):
	default:
		log.Error("command failed", logx.Err(err))
		reply = text(msgInternal)
	}
	s.served(inv, outcomeOf(err), start)
	log.Debug("command served", logx.String("outcome", outcomeOf(err)), logx.Duration("took", time.Since(start)))
	return reply
}

func (s *Service) served(inv transport.Invocation, outcome string, start time.Time) {
	s.publish(eventbus.TypeCommandServed, CommandEvent{
		Command:  inv.Command,
		GuildID:  inv.GuildID,
		UserID:   inv.UserID,
		Source:   inv.Source,
		Outcome:  outcome,
		Duration: time.Since(start),
	})
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}

func (s *Service) today() string {
	return domain.Day(s.now(), s.loc())
}
