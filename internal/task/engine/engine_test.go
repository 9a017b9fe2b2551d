package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leetbot/internal/eventbus"
	logx "leetbot/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newEngine(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.Enabled = true
	s := New(cfg, logx.Nop(), eventbus.New())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestEnqueueRuns(t *testing.T) {
	s := newEngine(t, Config{Workers: 1})

	var ran atomic.Int32
	require.NoError(t, s.Enqueue(Task{Name: "a", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}}))
	waitFor(t, func() bool { return ran.Load() == 1 })
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })

	h := s.Snapshot().History[0]
	assert.Equal(t, "a", h.Name)
	assert.NotEmpty(t, h.ID)
	assert.Empty(t, h.Error)
}

func TestOverlapSkip(t *testing.T) {
	s := newEngine(t, Config{Workers: 2})

	release := make(chan struct{})
	started := make(chan struct{})
	task := Task{Name: "daily:g1", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	require.NoError(t, s.Enqueue(task))
	<-started

	err := s.Enqueue(Task{Name: "daily:g1", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrOverlapSkip)

	// Different name is independent.
	assert.NoError(t, s.Enqueue(Task{Name: "daily:g2", Run: func(ctx context.Context) error { return nil }}))

	close(release)
	waitFor(t, func() bool {
		return s.Enqueue(Task{Name: "daily:g1", Run: func(ctx context.Context) error { return nil }}) == nil
	})
}

func TestRetryThenSucceed(t *testing.T) {
	s := newEngine(t, Config{Workers: 1, RetryMax: 3, RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, s.Enqueue(Task{Name: "flaky", Run: func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("upstream down")
		}
		return nil
	}}))
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })

	h := s.Snapshot().History[0]
	assert.Equal(t, 3, h.Attempts)
	assert.Empty(t, h.Error)
}

func TestNoRetryStopsImmediately(t *testing.T) {
	s := newEngine(t, Config{Workers: 1, RetryMax: 5, RetryBase: time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, s.Enqueue(Task{Name: "perm", Run: func(ctx context.Context) error {
		calls.Add(1)
		return NoRetry(errors.New("channel gone"))
	}}))
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "channel gone", s.Snapshot().History[0].Error)
}

func TestPanicBecomesError(t *testing.T) {
	s := newEngine(t, Config{Workers: 1})

	require.NoError(t, s.Enqueue(Task{Name: "boom", Opt: TaskOptions{RetryMax: -1}, Run: func(ctx context.Context) error {
		panic("bad")
	}}))
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })
	assert.Contains(t, s.Snapshot().History[0].Error, "panic: bad")

	// Worker survived.
	var ran atomic.Bool
	require.NoError(t, s.Enqueue(Task{Name: "after", Run: func(ctx context.Context) error { ran.Store(true); return nil }}))
	waitFor(t, ran.Load)
}

func TestTimeoutApplies(t *testing.T) {
	s := newEngine(t, Config{Workers: 1})

	require.NoError(t, s.Enqueue(Task{Name: "slow", Timeout: 10 * time.Millisecond, Opt: TaskOptions{RetryMax: -1}, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })
	assert.Contains(t, s.Snapshot().History[0].Error, "deadline")
}

func TestQueueFull(t *testing.T) {
	s := newEngine(t, Config{Workers: 1, QueueSize: 1})

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Enqueue(Task{Name: "hold", Run: func(ctx context.Context) error {
		close(started)
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}}))
	<-started
	require.NoError(t, s.Enqueue(Task{Name: "q1", Run: func(ctx context.Context) error { return nil }}))

	err := s.Enqueue(Task{Name: "q2", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), s.Snapshot().Dropped)
	close(block)
}

func TestDisabledAndStopped(t *testing.T) {
	off := New(Config{}, logx.Nop(), nil)
	assert.ErrorIs(t, off.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}), ErrDisabled)

	s := New(Config{Enabled: true}, logx.Nop(), nil)
	assert.ErrorIs(t, s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}), ErrStopped)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop(context.Background())
	s.Stop(context.Background())
	assert.ErrorIs(t, s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}), ErrStopped)

	assert.Error(t, s.Enqueue(Task{Name: "", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Enqueue(Task{Name: "x"}))
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	opt := TaskOptions{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second, RetryJitter: 0}
	// Jitter is forced off by passing a nil rng.
	assert.Equal(t, 100*time.Millisecond, backoffDelay(opt, 1, nil))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(opt, 2, nil))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(opt, 3, nil))
	assert.Equal(t, time.Second, backoffDelay(opt, 10, nil))

	hint := RetryAfter(errors.New("429"), 5*time.Second)
	assert.Equal(t, time.Second, backoffDelayWithHint(opt, 1, hint, nil))
	assert.False(t, IsNoRetry(hint))
	assert.True(t, IsNoRetry(NoRetry(hint)))
	assert.Nil(t, NoRetry(nil))
}
