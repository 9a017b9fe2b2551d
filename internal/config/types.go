package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "10s", "1m").
type Config struct {
	Discord    DiscordConfig     `json:"discord"`
	Logging    LoggingConfig     `json:"logging"`
	Scheduler  SchedulerConfig   `json:"scheduler"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`
	Storage    *StorageConfig    `json:"storage,omitempty"`
	LeetCode   LeetCodeConfig    `json:"leetcode"`
	Metrics    MetricsConfig     `json:"metrics"`
}

type DiscordConfig struct {
	// Token may be left empty and supplied through DISCORD_TOKEN.
	Token string `json:"token,omitempty"`
	// GuildID registers slash commands in a single guild (fast for development).
	GuildID       string `json:"guild_id,omitempty"`
	CommandPrefix string `json:"command_prefix,omitempty"`
	// DeferAfter is how long a slash command may run before Discord is told
	// the reply is deferred.
	DeferAfter string `json:"defer_after,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls daily triggers. Timezone also defines the
// calendar day used for records and streaks.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls execution of fired schedules.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "2m"
//   - history_size: 200
//   - retry_max: 3
//   - retry_base: "2s"
//   - retry_max_delay: "1m"
type TaskEngineConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
	RetryBase      string `json:"retry_base,omitempty"`
	RetryMaxDelay  string `json:"retry_max_delay,omitempty"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/leetbot.db" }
//
// Omitting the section uses the file driver at ./data/leetbot.json.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite

	URI      string `json:"uri,omitempty"` // mongo (do not log)
	Database string `json:"database,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type LeetCodeConfig struct {
	GraphQLURL string  `json:"graphql_url,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
	PoolSize   int     `json:"pool_size,omitempty"`
	CacheMB    int     `json:"cache_mb,omitempty"`
	CacheTTL   string  `json:"cache_ttl,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}
