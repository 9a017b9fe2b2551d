package config

import (
	"reflect"
	"sort"
	"strings"

	logx "leetbot/pkg/logx"
)

// SummarizeChange lists the changed sections plus log fields describing the
// new values. Secrets (token, mongo uri) are only reported as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field

	od, nd := oldCfg.Discord, newCfg.Discord
	if od.Token != nd.Token || od.GuildID != nd.GuildID || od.CommandPrefix != nd.CommandPrefix || od.DeferAfter != nd.DeferAfter {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_set", strings.TrimSpace(nd.Token) != ""),
			logx.String("discord.guild_id", nd.GuildID),
			logx.String("discord.command_prefix", nd.CommandPrefix),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}

	if !reflect.DeepEqual(oldCfg.TaskEngine, newCfg.TaskEngine) {
		changed = append(changed, "task_engine")
		if te := newCfg.TaskEngine; te != nil {
			attrs = append(attrs,
				logx.Int("task_engine.workers", te.Workers),
				logx.Int("task_engine.queue_size", te.QueueSize),
				logx.Int("task_engine.retry_max", te.RetryMax),
			)
		}
	}

	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newS.Driver),
			logx.Bool("storage.path_set", newS.Path != ""),
			logx.Bool("storage.uri_set", newS.URI != ""),
		)
	}

	if oldCfg.LeetCode != newCfg.LeetCode {
		changed = append(changed, "leetcode")
		attrs = append(attrs,
			logx.String("leetcode.graphql_url", newCfg.LeetCode.GraphQLURL),
			logx.Int("leetcode.pool_size", newCfg.LeetCode.PoolSize),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", newCfg.Metrics.Addr),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports changed sections that only take effect on restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "logging", "scheduler":
		default:
			out = append(out, s)
		}
	}
	return out
}
