package bot

import (
	"context"
	"fmt"
	"strings"

	"leetbot/internal/domain"
	"leetbot/internal/transport"
	logx "leetbot/pkg/logx"
)

func (s *Service) setupChannel(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	channelID := parseChannelID(inv.Args["channel"])
	if channelID == "" {
		channelID = inv.ChannelID
	}
	if channelID == "" {
		return transport.Reply{}, &ValidationError{Field: "channel", Msg: "Please pick a channel for daily posts."}
	}
	hour, minute, d, err := parseSetup(inv.Args)
	if err != nil {
		return transport.Reply{}, err
	}

	cfg := domain.GuildConfig{
		GuildID:    inv.GuildID,
		ChannelID:  channelID,
		PostHour:   hour,
		PostMinute: minute,
		Difficulty: d,
		UpdatedAt:  s.now(),
	}

	unlock, err := s.guilds.Lock(ctx, inv.GuildID)
	if err != nil {
		return transport.Reply{}, err
	}
	defer unlock()
	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return transport.Reply{}, fmt.Errorf("save config: %w", err)
	}
	if err := s.schedules.Upsert(cfg); err != nil {
		return transport.Reply{}, fmt.Errorf("schedule guild: %w", err)
	}
	s.log.Info("guild configured",
		logx.Guild(cfg.GuildID),
		logx.String("channel", cfg.ChannelID),
		logx.String("at", fmt.Sprintf("%02d:%02d", hour, minute)),
		logx.String("difficulty", string(d)),
	)

	return text(fmt.Sprintf("Daily LeetCode channel set to %s\nDaily posts scheduled for %02d:%02d (%s)\nProblem difficulty: %s",
		transport.ChannelMention(channelID), hour, minute, s.loc().String(), d.Label())), nil
}

func (s *Service) removeChannel(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	unlock, err := s.guilds.Lock(ctx, inv.GuildID)
	if err != nil {
		return transport.Reply{}, err
	}
	defer unlock()

	ok, err := s.store.DeleteConfig(ctx, inv.GuildID)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("delete config: %w", err)
	}
	s.schedules.Remove(inv.GuildID)
	if !ok {
		return transport.Reply{}, &NotConfiguredError{Msg: msgNoConfigSet}
	}
	s.log.Info("guild unconfigured", logx.Guild(inv.GuildID))
	return text("Daily posts disabled for this server. Use `/setup_channel` to enable them again."), nil
}

func (s *Service) setupUsername(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	username := strings.TrimSpace(inv.Args["username"])
	if username == "" {
		return transport.Reply{}, &ValidationError{Field: "username", Msg: "Please provide your LeetCode username."}
	}
	count, ok := s.solved.FetchSolvedCount(ctx, username)
	if !ok {
		return transport.Reply{}, &ValidationError{
			Field: "username",
			Msg:   fmt.Sprintf("Could not look up LeetCode user `%s`. Check the spelling or try again later.", username),
		}
	}

	unlock, err := s.users.Lock(ctx, inv.UserID)
	if err != nil {
		return transport.Reply{}, err
	}
	defer unlock()

	u, found, err := s.store.GetUser(ctx, inv.UserID)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("read user: %w", err)
	}
	if !found {
		u = domain.User{ID: inv.UserID}
	}
	u.Username = username
	u.SolvedCount = count
	if err := s.store.SaveUser(ctx, u); err != nil {
		return transport.Reply{}, fmt.Errorf("save user: %w", err)
	}
	s.log.Info("username linked", logx.User(inv.UserID), logx.String("username", username), logx.Int("solved", count), logx.Bool("new", !found))
	return text("Linked your LeetCode username: " + username), nil
}

func (s *Service) viewConfig(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	cfg, ok, err := s.store.GetConfig(ctx, inv.GuildID)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("read config: %w", err)
	}
	if !ok {
		return transport.Reply{}, &NotConfiguredError{Msg: msgNoConfigSet}
	}
	_, posted, err := s.store.GetDailyRecord(ctx, inv.GuildID, s.today())
	if err != nil {
		return transport.Reply{}, fmt.Errorf("read daily record: %w", err)
	}
	next, _ := s.schedules.Next(inv.GuildID)
	return embed(configEmbed(cfg, s.loc(), next, posted), true), nil
}

// parseChannelID accepts a raw id or a <#id> mention.
func parseChannelID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<#")
	s = strings.TrimSuffix(s, ">")
	return strings.TrimSpace(s)
}
