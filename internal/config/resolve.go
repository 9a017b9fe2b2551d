package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"leetbot/internal/leetcode"
	"leetbot/internal/metrics"
	"leetbot/internal/storage"
	"leetbot/internal/task/engine"
	"leetbot/internal/task/scheduler"
	"leetbot/internal/transport/discord"
	logx "leetbot/pkg/logx"
)

const (
	DefaultTimezone    = "America/New_York"
	DefaultStoragePath = "./data/leetbot.json"
	TokenEnv           = "DISCORD_TOKEN"
)

var ErrNoToken = errors.New("discord token missing (set discord.token or " + TokenEnv + ")")

// Runtime is the config resolved into per-component settings.
type Runtime struct {
	Logging   logx.Config
	Discord   discord.Config
	Scheduler scheduler.Config
	Engine    engine.Config
	Storage   storage.Config
	LeetCode  leetcode.Config
	Metrics   metrics.Config
}

// durations collects parse errors so Resolve reports every bad field at once.
type durations struct{ errs []error }

func (d *durations) get(path, raw string, def time.Duration) time.Duration {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	switch {
	case err != nil:
		d.errs = append(d.errs, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err))
		return def
	case v < 0:
		d.errs = append(d.errs, fmt.Errorf("%s: duration must be >= 0", path))
		return def
	case v == 0:
		return def
	}
	return v
}

// Resolve applies defaults and environment fallbacks. getenv may be nil.
func Resolve(cfg *Config, getenv func(string) string) (Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	var d durations
	var errs []error

	rt := Runtime{
		Logging: logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
		},
		Scheduler: scheduler.Config{Enabled: cfg.Scheduler.Enabled, Timezone: cfg.Scheduler.Timezone},
		Metrics:   metrics.Config{Enabled: cfg.Metrics.Enabled, Addr: cfg.Metrics.Addr},
	}
	if strings.TrimSpace(rt.Scheduler.Timezone) == "" {
		rt.Scheduler.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(rt.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}

	token := strings.TrimSpace(cfg.Discord.Token)
	if token == "" {
		token = strings.TrimSpace(getenv(TokenEnv))
	}
	if token == "" {
		errs = append(errs, ErrNoToken)
	}
	rt.Discord = discord.Config{
		Token:      token,
		GuildID:    strings.TrimSpace(cfg.Discord.GuildID),
		Prefix:     cfg.Discord.CommandPrefix,
		DeferAfter: d.get("discord.defer_after", cfg.Discord.DeferAfter, discord.DefaultDeferAfter),
	}

	te := TaskEngineConfig{}
	if cfg.TaskEngine != nil {
		te = *cfg.TaskEngine
	}
	rt.Engine = engine.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        orInt(te.Workers, 2),
		QueueSize:      orInt(te.QueueSize, 256),
		DefaultTimeout: d.get("task_engine.default_timeout", te.DefaultTimeout, 2*time.Minute),
		HistorySize:    orInt(te.HistorySize, 200),
		RetryMax:       orInt(te.RetryMax, 3),
		RetryBase:      d.get("task_engine.retry_base", te.RetryBase, 2*time.Second),
		RetryMaxDelay:  d.get("task_engine.retry_max_delay", te.RetryMaxDelay, time.Minute),
	}
	if te.Enabled != nil {
		if cfg.Scheduler.Enabled && !*te.Enabled {
			errs = append(errs, errors.New("task_engine.enabled cannot be false while scheduler.enabled is true"))
		}
		rt.Engine.Enabled = *te.Enabled
	}

	st := StorageConfig{Driver: "file", Path: DefaultStoragePath}
	if cfg.Storage != nil {
		st = *cfg.Storage
	}
	rt.Storage = storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(st.Driver)),
		Path:        strings.TrimSpace(st.Path),
		BusyTimeout: d.get("storage.busy_timeout", st.BusyTimeout, 0),
		URI:         strings.TrimSpace(st.URI),
		Database:    strings.TrimSpace(st.Database),
		Timeout:     d.get("storage.timeout", st.Timeout, 10*time.Second),
	}
	switch rt.Storage.Driver {
	case "", "file", "json", "sqlite", "sqlite3":
		if rt.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path: required for "+orStr(rt.Storage.Driver, "file")+" driver"))
		}
	case "mongo", "mongodb":
		if rt.Storage.URI == "" {
			errs = append(errs, errors.New("storage.uri: required for mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", st.Driver))
	}

	lc := cfg.LeetCode
	if lc.RatePerSec < 0 {
		errs = append(errs, errors.New("leetcode.rate_per_sec: must be >= 0"))
	}
	rt.LeetCode = leetcode.Config{
		GraphQLURL: strings.TrimSpace(lc.GraphQLURL),
		Timeout:    d.get("leetcode.timeout", lc.Timeout, 0),
		RatePerSec: lc.RatePerSec,
		Burst:      lc.Burst,
		PoolSize:   lc.PoolSize,
		CacheMB:    lc.CacheMB,
		CacheTTL:   d.get("leetcode.cache_ttl", lc.CacheTTL, 0),
	}

	if err := errors.Join(append(errs, d.errs...)...); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
