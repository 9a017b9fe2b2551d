package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"leetbot/internal/bot"
	"leetbot/internal/config"
	"leetbot/internal/daily"
	"leetbot/internal/eventbus"
	"leetbot/internal/leetcode"
	"leetbot/internal/metrics"
	"leetbot/internal/runtime/supervisor"
	"leetbot/internal/storage"
	"leetbot/internal/task/engine"
	"leetbot/internal/task/scheduler"
	"leetbot/internal/transport"
	"leetbot/internal/transport/discord"
	logx "leetbot/pkg/logx"
)

type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopRequested  StopReason = "requested"
)

// Options override collaborators, mostly for tests.
type Options struct {
	// Adapter replaces the Discord connection built from config.
	Adapter    transport.Adapter
	HTTPClient *http.Client
	Getenv     func(string) string
}

type App struct {
	cfgm   *config.Manager
	getenv func(string) string
	sup    *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	store    storage.Store
	engine   *engine.Service
	sched    *scheduler.Service
	coord    *daily.Coordinator
	registry *daily.Registry
	bot      *bot.Service
	adapter  transport.Adapter

	metrics    *metrics.Metrics
	metricsCfg metrics.Config
}

func NewApp(ctx context.Context, cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("INFO"))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt, err := config.Resolve(cfg, opts.Getenv)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, root := logx.New(rt.Logging)
	log := root.With(logx.Component("app"))
	cfgm.SetLogger(root)

	bus := eventbus.New()

	store, err := storage.Open(ctx, rt.Storage, root)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", logx.String("driver", orDefault(rt.Storage.Driver, "file")))

	eng := engine.New(rt.Engine, root, bus)
	sched := scheduler.New(rt.Scheduler, eng, root)
	lc := leetcode.New(rt.LeetCode, opts.HTTPClient, root)

	ad := opts.Adapter
	if ad == nil {
		d, err := discord.New(rt.Discord, root)
		if err != nil {
			_ = store.Close()
			_ = logSvc.Close()
			return nil, err
		}
		ad = d
	}

	coord := daily.NewCoordinator(daily.Deps{
		Store:     store,
		Provider:  lc,
		Publisher: bot.NewAnnouncer(ad),
		Bus:       bus,
		Log:       root,
		Location:  sched.Location,
	})
	registry := daily.NewRegistry(sched, coord, store, rt.Engine.DefaultTimeout, root)

	svc := bot.New(bot.Deps{
		Store:     store,
		Solved:    lc,
		Poster:    coord,
		Schedules: registry,
		Sender:    ad,
		Bus:       bus,
		Log:       root,
		Location:  sched.Location,
	})
	ad.SetCommands(svc.Commands())

	a := &App{
		cfgm:       cfgm,
		getenv:     opts.Getenv,
		log:        log,
		logs:       logSvc,
		bus:        bus,
		store:      store,
		engine:     eng,
		sched:      sched,
		coord:      coord,
		registry:   registry,
		bot:        svc,
		adapter:    ad,
		metricsCfg: rt.Metrics,
	}
	if rt.Metrics.Enabled {
		a.metrics = metrics.New(metrics.Gauges{
			BusDropped: bus.Dropped,
			QueueLen:   func() int { return eng.Snapshot().QueueLen },
			Schedules:  func() int { return len(sched.Snapshot().Schedules) },
		}, root)
	}
	return a, nil
}

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := config.Resolve(cfg, a.getenv)
		return err
	})

	runCtx := a.sup.Context()
	a.engine.Start(runCtx)

	// Seeding schedules and connecting to Discord are independent.
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		n, err := a.registry.Sync(gctx)
		if err != nil {
			return fmt.Errorf("seed schedules: %w", err)
		}
		a.log.Info("schedules seeded", logx.Int("guilds", n))
		return nil
	})
	g.Go(func() error {
		if err := a.adapter.Start(runCtx, a.bot.Handle); err != nil {
			return fmt.Errorf("start adapter: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.sup.Cancel()
		return err
	}
	a.sched.Start(runCtx)

	if a.metrics != nil {
		a.sup.Go("metrics.consume", func(c context.Context) error { return a.metrics.Consume(c, a.bus) })
		a.sup.GoRestart("metrics.http", func(c context.Context) error {
			return a.metrics.Serve(c, a.metricsCfg.Addr)
		}, supervisor.WithRestartBackoff(time.Second, 30*time.Second), supervisor.WithMaxRestarts(5))
	}

	a.sup.Go0("eventbus.log", a.logEvents)
	// Subscribe before the watcher starts so no committed reload is missed.
	reloads := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) { a.applyReloads(c, reloads) })
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("tz", a.sched.Location().String()))
	return nil
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
		}
	}
}

// applyReloads re-applies live sections (logging, scheduler) on every
// committed config. Other sections need a restart.
func (a *App) applyReloads(ctx context.Context, sub <-chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()

	for {
		var next *config.Config
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub:
			if !ok {
				return
			}
			next = c
		}

		changed, _ := config.SummarizeChange(last, next)
		last = next
		if rs := config.RestartRequired(changed); len(rs) > 0 {
			a.log.Warn("config sections changed; restart required to apply", logx.String("sections", strings.Join(rs, ",")))
		}

		rt, err := config.Resolve(next, a.getenv)
		if err != nil {
			a.log.Warn("invalid config; keeping previous", logx.Err(err))
			continue
		}
		a.logs.Apply(rt.Logging)

		wasEnabled := a.sched.Enabled()
		a.sched.Apply(rt.Scheduler)
		switch {
		case wasEnabled && !rt.Scheduler.Enabled:
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		case !wasEnabled && rt.Scheduler.Enabled:
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		// Never started: only the store and log file are open.
		err := a.store.Close()
		_ = a.logs.Close()
		return err
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	var errs []error
	// step bounds one shutdown stage so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("taskengine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", 2*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
