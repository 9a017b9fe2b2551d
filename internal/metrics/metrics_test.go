package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leetbot/internal/bot"
	"leetbot/internal/daily"
	"leetbot/internal/domain"
	"leetbot/internal/eventbus"
	"leetbot/internal/task/engine"
	logx "leetbot/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestObserve(t *testing.T) {
	m := New(Gauges{}, logx.Nop())

	m.Observe(eventbus.Event{Type: eventbus.TypeDailyPosted, Data: daily.PostEvent{Outcome: "posted"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeDailyPosted, Data: daily.PostEvent{Outcome: "posted", Test: true}})
	m.Observe(eventbus.Event{Type: eventbus.TypeDailySkipped, Data: daily.PostEvent{Outcome: "already_posted"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeSolveCounted, Data: bot.SolveEvent{Source: domain.SolveManual}})
	m.Observe(eventbus.Event{Type: eventbus.TypeCommandServed, Data: bot.CommandEvent{Command: "status", Outcome: "ok", Duration: time.Millisecond}})
	m.Observe(eventbus.Event{Type: eventbus.TypeTaskFailed, Data: engine.TaskEvent{Name: "daily:g1", Duration: time.Second}})
	m.Observe(eventbus.Event{Type: "other", Data: 42})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dailyPosts.WithLabelValues("posted", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dailyPosts.WithLabelValues("posted", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dailyPosts.WithLabelValues("already_posted", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("status", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("daily", "failed")))
}

func TestConsume(t *testing.T) {
	bus := eventbus.New()
	m := New(Gauges{BusDropped: bus.Dropped}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Consume(ctx, bus) }()

	require.Eventually(t, func() bool {
		bus.Publish(eventbus.Event{Type: eventbus.TypeSolveCounted, Data: bot.SolveEvent{Source: domain.SolveAuto}})
		return testutil.ToFloat64(m.solves.WithLabelValues("auto")) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New(Gauges{QueueLen: func() int { return 3 }, Schedules: func() int { return 2 }}, logx.Nop())
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "leetbot_task_queue_length 3")
	assert.Contains(t, body, "leetbot_schedules 2")
}

func TestServeShutsDown(t *testing.T) {
	m := New(Gauges{}, logx.Nop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.serve(ctx, ln) }()

	c := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := c.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.True(t, strings.HasPrefix(string(b), "ok"))

	cancel()
	assert.NoError(t, <-done)
}
