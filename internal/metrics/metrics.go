// Package metrics exports Prometheus counters derived from bus events.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leetbot/internal/bot"
	"leetbot/internal/daily"
	"leetbot/internal/eventbus"
	"leetbot/internal/task/engine"
	logx "leetbot/pkg/logx"
)

const DefaultAddr = "127.0.0.1:9108"

type Config struct {
	Enabled bool
	Addr    string
}

// Gauges are read at scrape time. Nil funcs are skipped.
type Gauges struct {
	BusDropped func() uint64
	QueueLen   func() int
	Schedules  func() int
}

type Metrics struct {
	reg *prometheus.Registry
	log logx.Logger

	dailyPosts      *prometheus.CounterVec
	solves          *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	tasks           *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
}

func New(g Gauges, log logx.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		log: log.With(logx.Component("metrics")),

		dailyPosts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leetbot_daily_posts_total",
			Help: "Daily posting attempts by outcome",
		}, []string{"outcome", "test"}),

		solves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leetbot_solves_total",
			Help: "Counted solves by source",
		}, []string{"source"}),

		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leetbot_commands_total",
			Help: "Served commands by outcome",
		}, []string{"command", "outcome"}),

		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leetbot_command_duration_seconds",
			Help:    "Command handling time",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),

		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leetbot_tasks_total",
			Help: "Task engine runs by kind and state",
		}, []string{"kind", "state"}),

		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leetbot_task_duration_seconds",
			Help:    "Task run time",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	if g.BusDropped != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "leetbot_bus_dropped_events",
			Help: "Events dropped because a subscriber was full",
		}, func() float64 { return float64(g.BusDropped()) })
	}
	if g.QueueLen != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "leetbot_task_queue_length",
			Help: "Tasks waiting in the engine queue",
		}, func() float64 { return float64(g.QueueLen()) })
	}
	if g.Schedules != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "leetbot_schedules",
			Help: "Registered scheduler triggers",
		}, func() float64 { return float64(g.Schedules()) })
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe folds one event into the counters. Unknown events are ignored.
func (m *Metrics) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case daily.PostEvent:
		m.dailyPosts.WithLabelValues(d.Outcome, strconv.FormatBool(d.Test)).Inc()
	case bot.SolveEvent:
		m.solves.WithLabelValues(string(d.Source)).Inc()
	case bot.CommandEvent:
		m.commands.WithLabelValues(d.Command, d.Outcome).Inc()
		m.commandDuration.WithLabelValues(d.Command).Observe(d.Duration.Seconds())
	case engine.TaskEvent:
		kind := taskKind(d.Name)
		state := strings.TrimPrefix(e.Type, "task.")
		m.tasks.WithLabelValues(kind, state).Inc()
		if e.Type == eventbus.TypeTaskFinished || e.Type == eventbus.TypeTaskFailed {
			m.taskDuration.WithLabelValues(kind).Observe(d.Duration.Seconds())
		}
	}
}

// taskKind strips per-guild suffixes ("daily:123" -> "daily").
func taskKind(name string) string {
	if k, _, ok := strings.Cut(name, ":"); ok {
		return k
	}
	return name
}

// Consume feeds bus events into Observe until ctx is done.
func (m *Metrics) Consume(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	m.log.Info("metrics listening", logx.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
