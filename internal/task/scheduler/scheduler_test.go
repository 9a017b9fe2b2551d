package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leetbot/internal/task/engine"
	logx "leetbot/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingEngine struct {
	mu    sync.Mutex
	tasks []engine.Task
}

func (r *recordingEngine) Enqueue(t engine.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *recordingEngine) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Name)
	}
	return out
}

func noop(context.Context) error { return nil }

func TestAddDailyUpsertsByName(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Timezone: "UTC"}, &recordingEngine{}, logx.Nop())
	require.NoError(t, s.AddDaily("daily:g1", 9, 0, 0, noop))
	require.NoError(t, s.AddDaily("daily:g1", 18, 30, 0, noop))
	require.NoError(t, s.AddDaily("daily:g2", 7, 5, 0, noop))

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 2)
	assert.Equal(t, "daily:g1", snap.Schedules[0].Name)
	assert.Equal(t, "30 18 * * *", snap.Schedules[0].Spec)

	next, err := s.Next("daily:g1")
	require.NoError(t, err)
	assert.Equal(t, 18, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestAddDailyValidates(t *testing.T) {
	t.Parallel()

	s := New(Config{Timezone: "UTC"}, nil, logx.Nop())
	assert.Error(t, s.AddDaily("x", 24, 0, 0, noop))
	assert.Error(t, s.AddDaily("x", -1, 0, 0, noop))
	assert.Error(t, s.AddDaily("x", 9, 60, 0, noop))
	assert.Error(t, s.AddDaily("", 9, 0, 0, noop))
	assert.Error(t, s.AddDaily("x", 9, 0, 0, nil))
	assert.Error(t, s.AddCron("x", "not a spec", 0, noop))
	assert.False(t, s.Has("x"))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Timezone: "UTC"}, &recordingEngine{}, logx.Nop())
	require.NoError(t, s.AddDaily("daily:g1", 9, 0, 0, noop))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	assert.True(t, s.Remove("daily:g1"))
	assert.False(t, s.Remove("daily:g1"))
	_, err := s.Next("daily:g1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Snapshot().Schedules)
}

func TestNextUsesTimezone(t *testing.T) {
	t.Parallel()

	s := New(Config{Timezone: "America/New_York"}, nil, logx.Nop())
	if s.Location().String() != "America/New_York" {
		t.Skip("tzdata unavailable")
	}
	require.NoError(t, s.AddDaily("daily:g1", 9, 0, 0, noop))
	next, err := s.Next("daily:g1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", next.Location().String())
	assert.Equal(t, 9, next.Hour())

	s.Apply(Config{Timezone: "UTC"})
	assert.Equal(t, "UTC", s.Location().String())
	next, err = s.Next("daily:g1")
	require.NoError(t, err)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, time.UTC, next.Location())
}

func TestInvalidTimezoneFallsBackToUTC(t *testing.T) {
	t.Parallel()

	s := New(Config{Timezone: "Mars/Olympus"}, nil, logx.Nop())
	assert.Equal(t, time.UTC, s.Location())
}

func TestFireEnqueuesTask(t *testing.T) {
	t.Parallel()

	rec := &recordingEngine{}
	s := New(Config{Timezone: "UTC"}, rec, logx.Nop())
	require.NoError(t, s.AddDaily("daily:g1", 9, 0, time.Minute, noop))

	s.mu.Lock()
	d := s.defs["daily:g1"]
	s.mu.Unlock()
	require.NoError(t, s.enqueue(d))
	assert.Equal(t, []string{"daily:g1"}, rec.names())

	rec.mu.Lock()
	assert.Equal(t, time.Minute, rec.tasks[0].Timeout)
	assert.Equal(t, engine.OverlapSkipIfRunning, rec.tasks[0].Opt.Overlap)
	rec.mu.Unlock()
}

func TestCronFiresIntoEngine(t *testing.T) {
	t.Parallel()

	rec := &recordingEngine{}
	s := New(Config{Enabled: true, Timezone: "UTC"}, rec, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.NoError(t, s.AddCron("tick", "@every 1s", 0, noop))
	require.Eventually(t, func() bool { return len(rec.names()) > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "tick", rec.names()[0])
	assert.True(t, s.Snapshot().Running)
}

func TestDisabledDoesNotStart(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: false}, nil, logx.Nop())
	s.Start(context.Background())
	assert.False(t, s.Snapshot().Running)
	s.Stop(context.Background())
}
