package storage

import (
	"context"
	"errors"
	"strings"

	"leetbot/internal/domain"
	logx "leetbot/pkg/logx"
)

// Store owns every persisted collection. Mutating calls are durable when
// they return nil.
type Store interface {
	GetUser(ctx context.Context, id string) (domain.User, bool, error)
	// SaveUser inserts or replaces u. Seq is assigned on first insert.
	SaveUser(ctx context.Context, u domain.User) error
	// ListUsers returns users in insertion order.
	ListUsers(ctx context.Context) ([]domain.User, error)

	GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, bool, error)
	SaveConfig(ctx context.Context, c domain.GuildConfig) error
	DeleteConfig(ctx context.Context, guildID string) (bool, error)
	ListConfigs(ctx context.Context) ([]domain.GuildConfig, error)

	GetDailyRecord(ctx context.Context, guildID, date string) (domain.DailyProblemRecord, bool, error)
	// CreateDailyRecord atomically claims (GuildID, Date). It returns
	// ErrRecordExists when the slot is taken.
	CreateDailyRecord(ctx context.Context, r domain.DailyProblemRecord) error

	AppendSolve(ctx context.Context, e domain.SolveEntry) error

	Close() error
}

// Open initializes the configured store. An empty driver selects "file".
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.Component("storage"), logx.String("driver", driver))

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "mongo", "mongodb":
		return openMongo(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
