package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leetbot/internal/domain"
	logx "leetbot/pkg/logx"
)

func openDriver(t *testing.T, driver string) Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	if driver == "sqlite" {
		path = filepath.Join(dir, "data.db")
	}
	st, err := Open(context.Background(), Config{Driver: driver, Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreContract(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Run("users", func(t *testing.T) { testUsers(t, openDriver(t, driver)) })
			t.Run("configs", func(t *testing.T) { testConfigs(t, openDriver(t, driver)) })
			t.Run("daily records", func(t *testing.T) { testDailyRecords(t, openDriver(t, driver)) })
			t.Run("concurrent claim", func(t *testing.T) { testConcurrentClaim(t, openDriver(t, driver)) })
			t.Run("aggregates", func(t *testing.T) { testAggregates(t, openDriver(t, driver)) })
			t.Run("solves", func(t *testing.T) {
				st := openDriver(t, driver)
				err := st.AppendSolve(context.Background(), domain.SolveEntry{
					UserID: "u1", GuildID: "g1", Date: "2024-06-10", Source: domain.SolveManual, Streak: 1, At: time.Now(),
				})
				assert.NoError(t, err)
			})
		})
	}
}

func testUsers(t *testing.T, st Store) {
	ctx := context.Background()

	_, ok, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ts := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "u1", Username: "alice", SolvedCount: 10}))
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "u2", Username: "bob"}))
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "u1", Username: "alice", SolvedCount: 11, Streak: 1, LastSolve: &ts}))

	u, ok, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, 11, u.SolvedCount)
	assert.Equal(t, 1, u.Streak)
	require.NotNil(t, u.LastSolve)
	assert.True(t, ts.Equal(*u.LastSolve))

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	// Updating u1 must not move it behind u2.
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)

	assert.Error(t, st.SaveUser(ctx, domain.User{}))
}

func testConfigs(t *testing.T, st Store) {
	ctx := context.Background()

	c := domain.GuildConfig{GuildID: "g1", ChannelID: "c1", PostHour: 9, Difficulty: domain.DifficultyRandom, UpdatedAt: time.Now().UTC()}
	require.NoError(t, st.SaveConfig(ctx, c))
	c.PostHour = 18
	c.Difficulty = domain.DifficultyHard
	require.NoError(t, st.SaveConfig(ctx, c))
	require.NoError(t, st.SaveConfig(ctx, domain.GuildConfig{GuildID: "g0", ChannelID: "c0"}))

	got, ok, err := st.GetConfig(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 18, got.PostHour)
	assert.Equal(t, domain.DifficultyHard, got.Difficulty)

	all, err := st.ListConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "g0", all[0].GuildID)

	deleted, err := st.DeleteConfig(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = st.DeleteConfig(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok, err = st.GetConfig(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDailyRecords(t *testing.T, st Store) {
	ctx := context.Background()

	r := domain.DailyProblemRecord{GuildID: "g1", Date: "2024-06-10", ProblemID: "1", Title: "Two Sum", Slug: "two-sum", CreatedAt: time.Now().UTC()}
	require.NoError(t, st.CreateDailyRecord(ctx, r))

	err := st.CreateDailyRecord(ctx, domain.DailyProblemRecord{GuildID: "g1", Date: "2024-06-10", ProblemID: "2", Title: "Other"})
	assert.True(t, errors.Is(err, ErrRecordExists))

	// Same date, different guild is a separate slot.
	require.NoError(t, st.CreateDailyRecord(ctx, domain.DailyProblemRecord{GuildID: "g2", Date: "2024-06-10", ProblemID: "3", Title: "Third"}))

	got, ok, err := st.GetDailyRecord(ctx, "g1", "2024-06-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Two Sum", got.Title)
	assert.Equal(t, "two-sum", got.Slug)

	_, ok, err = st.GetDailyRecord(ctx, "g1", "2024-06-11")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentClaim(t *testing.T, st Store) {
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.CreateDailyRecord(ctx, domain.DailyProblemRecord{GuildID: "g1", Date: "2024-06-10", ProblemID: "1", Title: "x"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrRecordExists):
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 7, exists)
}

func testAggregates(t *testing.T, st Store) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	today := now.Add(-time.Hour)
	threeDays := now.Add(-72 * time.Hour)
	longAgo := now.Add(-10 * 24 * time.Hour)

	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "a", Username: "a", Streak: 3, LastSolve: &threeDays}))
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "b", Username: "b", Streak: 5, LastSolve: &today}))
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "c", Username: "c", Streak: 3, LastSolve: &longAgo}))
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "d", Username: "d"}))

	top, err := TopUsersByStreak(ctx, st, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"b", "a", "c"}, ids(top))

	active, err := ActiveUsers(ctx, st, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(active))

	solvers, total, err := TodaySolvers(ctx, st, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(solvers))
	assert.Equal(t, 4, total)
}

func ids(users []domain.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "data.json")

	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "u1", Username: "alice"}))
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "u2", Username: "bob"}))
	require.NoError(t, st.CreateDailyRecord(ctx, domain.DailyProblemRecord{GuildID: "g", Date: "2024-06-10", ProblemID: "1", Title: "t"}))
	require.NoError(t, st.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{`"users"`, `"daily_problems"`, `"configs"`, `"user_solves"`} {
		assert.Contains(t, string(b), key)
	}

	st, err = Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids(users))

	// Seq keeps growing after reload.
	require.NoError(t, st.SaveUser(ctx, domain.User{ID: "u0", Username: "zed"}))
	users, err = st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u0"}, ids(users))

	err = st.CreateDailyRecord(ctx, domain.DailyProblemRecord{GuildID: "g", Date: "2024-06-10", ProblemID: "2", Title: "t"})
	assert.ErrorIs(t, err, ErrRecordExists)
}

func TestFileStoreMalformedFallsBackToEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "data.json.corrupt-") {
			backups++
		}
	}
	assert.Equal(t, 1, backups)
}

func TestFileStoreFlushFailureRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	// Replace the target with a non-empty directory so rename fails.
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))

	err = st.SaveUser(ctx, domain.User{ID: "u1", Username: "alice"})
	require.Error(t, err)

	_, ok, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Driver: "etcd"}, logx.Logger{})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: "none"}, logx.Logger{})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), Config{Driver: "file"}, logx.Logger{})
	assert.Error(t, err)
}

func TestClosedFileStore(t *testing.T) {
	t.Parallel()

	st := openDriver(t, "file")
	require.NoError(t, st.Close())
	_, _, err := st.GetUser(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrClosed)
}
