package bot

import (
	"leetbot/internal/domain"
	"leetbot/internal/transport"
)

func intPtr(v int) *int { return &v }

func (s *Service) register() {
	var difficulties []transport.Choice
	for _, d := range domain.Difficulties() {
		difficulties = append(difficulties, transport.Choice{Name: d.Label(), Value: string(d)})
	}
	cmds := []command{
		{
			spec: transport.CommandSpec{
				Name:        "setup_channel",
				Description: "Set the channel, time, and difficulty for daily LeetCode posts",
				AdminOnly:   true,
				Options: []transport.OptionSpec{
					{Name: "channel", Description: "The channel to post daily problems", Kind: transport.OptionChannel, Required: true},
					{Name: "hour", Description: "Hour of the day (0-23, default: 9)", Kind: transport.OptionInteger, Min: intPtr(0), Max: intPtr(23)},
					{Name: "minute", Description: "Minute of the hour (0-59, default: 0)", Kind: transport.OptionInteger, Min: intPtr(0), Max: intPtr(59)},
					{Name: "difficulty", Description: "Problem difficulty: random, easy, medium, or hard (default: random)", Kind: transport.OptionString, Choices: difficulties},
				},
			},
			guildOnly: true,
			denied:    "You need administrator permissions to set the channel.",
			run:       s.setupChannel,
		},
		{
			spec: transport.CommandSpec{
				Name:        "remove_channel",
				Description: "Stop daily LeetCode posts for this server (admin only)",
				AdminOnly:   true,
			},
			guildOnly: true,
			denied:    "You need administrator permissions to remove the channel.",
			run:       s.removeChannel,
		},
		{
			spec: transport.CommandSpec{
				Name:        "setup_username",
				Description: "Link your LeetCode username",
				Options: []transport.OptionSpec{
					{Name: "username", Description: "Your LeetCode username", Kind: transport.OptionString, Required: true},
				},
			},
			run: s.setupUsername,
		},
		{
			spec:      transport.CommandSpec{Name: "status", Description: "Check if you've solved today's problem"},
			guildOnly: true,
			run:       s.status,
		},
		{
			spec:      transport.CommandSpec{Name: "mark_solved", Description: "Manually mark today's problem as solved"},
			guildOnly: true,
			run:       s.markSolved,
		},
		{
			spec:      transport.CommandSpec{Name: "view_config", Description: "View the current daily post configuration"},
			guildOnly: true,
			run:       s.viewConfig,
		},
		{
			spec:      transport.CommandSpec{Name: "post_now", Description: "Post the daily LeetCode problem immediately (admin only)", AdminOnly: true},
			guildOnly: true,
			denied:    "You need administrator permissions to post immediately.",
			run:       s.postNow,
		},
		{
			spec:      transport.CommandSpec{Name: "today_solvers", Description: "Show who has solved today's problem"},
			guildOnly: true,
			run:       s.todaySolvers,
		},
		{
			spec: transport.CommandSpec{Name: "leaderboard", Description: "View the top streaks and active solvers"},
			run:  s.leaderboard,
		},
		{
			spec:      transport.CommandSpec{Name: "test_post", Description: "Test the daily posting (admin only)", AdminOnly: true},
			guildOnly: true,
			denied:    "You need administrator permissions to test posting.",
			run:       s.testPost,
		},
		{
			spec: transport.CommandSpec{Name: "help", Description: "List the bot's commands"},
			run:  s.help,
		},
	}

	s.commands = make(map[string]command, len(cmds))
	s.specs = make([]transport.CommandSpec, 0, len(cmds))
	for _, c := range cmds {
		s.commands[c.spec.Name] = c
		s.specs = append(s.specs, c.spec)
	}
}
