package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"leetbot/internal/domain"
	logx "leetbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = FULL")

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const userColumns = `seq, discord_id, leetcode_username, solved_count, streak, last_solve_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (domain.User, error) {
	var (
		u    domain.User
		last sql.NullString
	)
	if err := r.Scan(&u.Seq, &u.ID, &u.Username, &u.SolvedCount, &u.Streak, &last); err != nil {
		return domain.User{}, err
	}
	if last.Valid && last.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, last.String)
		if err != nil {
			return domain.User{}, fmt.Errorf("user %s: bad last_solve_date: %w", u.ID, err)
		}
		u.LastSolve = &ts
	}
	return u, nil
}

func (s *sqliteStore) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE discord_id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

func (s *sqliteStore) SaveUser(ctx context.Context, u domain.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("storage: user id is required")
	}
	var last any
	if u.LastSolve != nil {
		last = u.LastSolve.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(discord_id, leetcode_username, solved_count, streak, last_solve_date)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(discord_id) DO UPDATE SET
		   leetcode_username=excluded.leetcode_username,
		   solved_count=excluded.solved_count,
		   streak=excluded.streak,
		   last_solve_date=excluded.last_solve_date`,
		u.ID, u.Username, u.SolvedCount, u.Streak, last,
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const configColumns = `guild_id, channel_id, post_hour, post_minute, difficulty, updated_at`

func scanConfig(r rowScanner) (domain.GuildConfig, error) {
	var (
		c       domain.GuildConfig
		diff    string
		updated sql.NullString
	)
	if err := r.Scan(&c.GuildID, &c.ChannelID, &c.PostHour, &c.PostMinute, &diff, &updated); err != nil {
		return domain.GuildConfig{}, err
	}
	c.Difficulty = domain.Difficulty(diff)
	if updated.Valid && updated.String != "" {
		if ts, err := time.Parse(time.RFC3339Nano, updated.String); err == nil {
			c.UpdatedAt = ts
		}
	}
	return c, nil
}

func (s *sqliteStore) GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM configs WHERE guild_id = ?`, guildID)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GuildConfig{}, false, nil
	}
	if err != nil {
		return domain.GuildConfig{}, false, err
	}
	return c, true, nil
}

func (s *sqliteStore) SaveConfig(ctx context.Context, c domain.GuildConfig) error {
	if strings.TrimSpace(c.GuildID) == "" {
		return errors.New("storage: guild id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configs(`+configColumns+`) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   channel_id=excluded.channel_id,
		   post_hour=excluded.post_hour,
		   post_minute=excluded.post_minute,
		   difficulty=excluded.difficulty,
		   updated_at=excluded.updated_at`,
		c.GuildID, c.ChannelID, c.PostHour, c.PostMinute, string(c.Difficulty), c.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save config %s: %w", c.GuildID, err)
	}
	return nil
}

func (s *sqliteStore) DeleteConfig(ctx context.Context, guildID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM configs WHERE guild_id = ?`, guildID)
	if err != nil {
		return false, fmt.Errorf("delete config %s: %w", guildID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) ListConfigs(ctx context.Context) ([]domain.GuildConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configColumns+` FROM configs ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GuildConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetDailyRecord(ctx context.Context, guildID, date string) (domain.DailyProblemRecord, bool, error) {
	var (
		r       domain.DailyProblemRecord
		diff    string
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, date, problem_id, title, slug, difficulty, created_at
		 FROM daily_problems WHERE guild_id = ? AND date = ?`, guildID, date,
	).Scan(&r.GuildID, &r.Date, &r.ProblemID, &r.Title, &r.Slug, &diff, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyProblemRecord{}, false, nil
	}
	if err != nil {
		return domain.DailyProblemRecord{}, false, err
	}
	r.Difficulty = domain.Difficulty(diff)
	if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		r.CreatedAt = ts
	}
	return r, true, nil
}

func (s *sqliteStore) CreateDailyRecord(ctx context.Context, r domain.DailyProblemRecord) error {
	if r.GuildID == "" || r.Date == "" {
		return errors.New("storage: daily record needs guild and date")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_problems(guild_id, date, problem_id, title, slug, difficulty, created_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(guild_id, date) DO NOTHING`,
		r.GuildID, r.Date, r.ProblemID, r.Title, r.Slug, string(r.Difficulty), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create daily record %s: %w", r.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordExists
	}
	return nil
}

func (s *sqliteStore) AppendSolve(ctx context.Context, e domain.SolveEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_solves(user_id, guild_id, date, problem_id, source, streak, at)
		 VALUES(?,?,?,?,?,?,?)`,
		e.UserID, e.GuildID, e.Date, e.ProblemID, string(e.Source), e.Streak, e.At.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append solve %s: %w", e.UserID, err)
	}
	return nil
}
