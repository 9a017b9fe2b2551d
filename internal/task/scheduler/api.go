package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"leetbot/internal/task/engine"
	logx "leetbot/pkg/logx"
)

var ErrNotFound = errors.New("scheduler: schedule not found")

// AddDaily upserts a schedule firing every day at hour:minute in the
// scheduler timezone. DST gaps and repeats follow robfig/cron semantics.
func (s *Service) AddDaily(name string, hour, minute int, timeout time.Duration, job Job) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("invalid minute %d", minute)
	}
	return s.AddCron(name, fmt.Sprintf("%d %d * * *", minute, hour), timeout, job)
}

// AddCron upserts a cron schedule. Runs of the same schedule never overlap.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	return s.AddCronOpt(name, spec, timeout, engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning}, job)
}

func (s *Service) AddCronOpt(name, spec string, timeout time.Duration, opt engine.TaskOptions, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert by name.
	replaced := s.removeLocked(name)
	d := &scheduleDef{name: name, spec: spec, timeout: timeout, job: job, opt: opt}
	s.defs[name] = d
	if s.c != nil {
		s.registerLocked(d)
	}

	fields := []logx.Field{logx.String("name", name), logx.String("spec", spec), logx.Bool("replaced", replaced)}
	if next := s.nextLocked(d); !next.IsZero() {
		fields = append(fields, logx.String("next", next.Format(time.RFC3339)))
	}
	s.log.Debug("schedule registered", fields...)
	return nil
}

// Remove unschedules name. It reports whether anything was removed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	removed := s.removeLocked(strings.TrimSpace(name))
	s.mu.Unlock()
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// Has reports whether a schedule named name exists.
func (s *Service) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.defs[name]
	return ok
}

// Names returns the registered schedule names.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.defs))
	for n := range s.defs {
		out = append(out, n)
	}
	return out
}

// Next returns the next fire time of name, computed from the cron expression even when
// the scheduler is not running.
func (s *Service) Next(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return s.nextLocked(d), nil
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) registerLocked(d *scheduleDef) {
	eid, err := s.c.AddJob(d.spec, cron.FuncJob(func() {
		if err := s.enqueue(d); err != nil {
			s.reportEnqueueError(d.name, err)
		}
	}))
	if err != nil {
		s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		return
	}
	d.entryID = eid
}

func (s *Service) enqueue(d *scheduleDef) error {
	if s.engine == nil {
		return engine.ErrDisabled
	}
	return s.engine.Enqueue(engine.Task{
		Name:    d.name,
		Timeout: d.timeout,
		Run:     d.job,
		Opt:     d.opt,
	})
}

func (s *Service) nextLocked(d *scheduleDef) time.Time {
	if s.c != nil && d.entryID != 0 {
		if e := s.c.Entry(d.entryID); !e.Next.IsZero() {
			return e.Next
		}
	}
	sched, err := s.parser.Parse(d.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now().In(s.loc))
}
