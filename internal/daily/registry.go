package daily

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leetbot/internal/domain"
	"leetbot/internal/storage"
	"leetbot/internal/task/engine"
	"leetbot/internal/task/scheduler"
	logx "leetbot/pkg/logx"
)

const schedulePrefix = "daily:"

// DefaultJobTimeout bounds one scheduled posting attempt.
const DefaultJobTimeout = 2 * time.Minute

var errFetchFailed = errors.New("daily problem fetch failed")

// ScheduleName is the trigger name of a guild's daily post.
func ScheduleName(guildID string) string { return schedulePrefix + guildID }

// Schedules is the part of the scheduler the registry drives.
type Schedules interface {
	AddDaily(name string, hour, minute int, timeout time.Duration, job scheduler.Job) error
	Remove(name string) bool
	Names() []string
	Next(name string) (time.Time, error)
}

// Registry keeps one daily trigger per guild config.
type Registry struct {
	sched   Schedules
	coord   *Coordinator
	store   storage.Store
	log     logx.Logger
	timeout time.Duration
}

func NewRegistry(sched Schedules, coord *Coordinator, store storage.Store, timeout time.Duration, log logx.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Registry{
		sched:   sched,
		coord:   coord,
		store:   store,
		log:     log.With(logx.Component("daily.registry")),
		timeout: timeout,
	}
}

// Sync registers a trigger for every stored config and drops triggers of
// guilds that no longer have one. It returns the number registered.
func (r *Registry) Sync(ctx context.Context) (int, error) {
	cfgs, err := r.store.ListConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list configs: %w", err)
	}
	want := make(map[string]struct{}, len(cfgs))
	var errs []error
	n := 0
	for _, c := range cfgs {
		want[ScheduleName(c.GuildID)] = struct{}{}
		if err := r.Upsert(c); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	for _, name := range r.sched.Names() {
		if !strings.HasPrefix(name, schedulePrefix) {
			continue
		}
		if _, ok := want[name]; !ok {
			r.sched.Remove(name)
		}
	}
	r.log.Info("daily schedules synced", logx.Int("count", n))
	return n, errors.Join(errs...)
}

// Upsert replaces the guild's trigger with one matching cfg.
func (r *Registry) Upsert(cfg domain.GuildConfig) error {
	name := ScheduleName(cfg.GuildID)
	if err := r.sched.AddDaily(name, cfg.PostHour, cfg.PostMinute, r.timeout, r.job(cfg.GuildID)); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Remove drops the guild's trigger. It reports whether one existed.
func (r *Registry) Remove(guildID string) bool {
	return r.sched.Remove(ScheduleName(guildID))
}

// Next returns the guild's next fire time.
func (r *Registry) Next(guildID string) (time.Time, bool) {
	t, err := r.sched.Next(ScheduleName(guildID))
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func (r *Registry) job(guildID string) scheduler.Job {
	return func(ctx context.Context) error {
		res, err := r.coord.PostForGuild(ctx, guildID)
		if err != nil {
			return err
		}
		switch res.Outcome {
		case FetchFailed:
			return errFetchFailed
		case ChannelUnavailable:
			return engine.NoRetry(fmt.Errorf("guild %s: channel %s unavailable", guildID, res.Channel))
		case NotConfigured:
			r.log.Warn("trigger fired for unconfigured guild", logx.Guild(guildID))
			return nil
		default:
			return nil
		}
	}
}
