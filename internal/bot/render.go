package bot

import (
	"fmt"
	"strings"
	"time"

	"leetbot/internal/daily"
	"leetbot/internal/domain"
	"leetbot/internal/transport"
)

const (
	colorGreen  = 0x00ff00
	colorOrange = 0xffa500
	colorGold   = 0xffd700
)

var medals = []string{"🥇", "🥈", "🥉"}

func problemEmbed(p daily.Post) *transport.Embed {
	title := "Daily LeetCode Challenge " + p.Difficulty.Badge()
	e := &transport.Embed{
		Description: fmt.Sprintf("**%s**\nSolve it here: %s", p.Problem.Title, p.Problem.URL()),
	}
	if p.Test {
		title += " (TEST)"
		e.Color = colorOrange
	}
	e.Title = title
	return e
}

func solvedEmbed(userID, problemTitle string, streak int) *transport.Embed {
	return &transport.Embed{
		Title:       "🎉 Problem Solved!",
		Description: fmt.Sprintf("**%s** solved today's problem!\n**%s**\n\nStreak: %d 🔥", transport.UserMention(userID), problemTitle, streak),
		Color:       colorGreen,
	}
}

func statusEmbed(problemTitle string, streak int, status string) *transport.Embed {
	return &transport.Embed{
		Title: "Daily Problem Status",
		Color: colorOrange,
		Fields: []transport.EmbedField{
			{Name: "Problem", Value: problemTitle},
			{Name: "Your Streak", Value: fmt.Sprint(streak), Inline: true},
			{Name: "Status", Value: status, Inline: true},
		},
		Footer: "Use /mark_solved if you've solved it but it's not detected automatically",
	}
}

func configEmbed(c domain.GuildConfig, loc *time.Location, next time.Time, postedToday bool) *transport.Embed {
	nextPost := "Not scheduled"
	if !next.IsZero() {
		nextPost = fmt.Sprintf("<t:%d:F> (<t:%d:R>)", next.Unix(), next.Unix())
	}
	if postedToday {
		nextPost += "\nToday's problem has already been posted."
	}
	return &transport.Embed{
		Title: "Daily LeetCode Configuration",
		Color: colorGreen,
		Fields: []transport.EmbedField{
			{Name: "Channel", Value: transport.ChannelMention(c.ChannelID), Inline: true},
			{Name: "Time", Value: fmt.Sprintf("%02d:%02d %s", c.PostHour, c.PostMinute, loc.String()), Inline: true},
			{Name: "Difficulty", Value: c.Difficulty.Label(), Inline: true},
			{Name: "Next Post", Value: nextPost},
		},
	}
}

func solversEmbed(rec *domain.DailyProblemRecord, solvers []domain.User, total int) *transport.Embed {
	e := &transport.Embed{Title: "Today's Problem Solvers 🧩", Color: colorGreen}
	if rec != nil {
		e.Fields = append(e.Fields, transport.EmbedField{Name: "Today's Problem", Value: rec.Title})
	}
	if len(solvers) == 0 {
		e.Fields = append(e.Fields, transport.EmbedField{Name: "Solvers", Value: "No one has solved today's problem yet! 🧩"})
	} else {
		lines := make([]string, 0, len(solvers))
		for _, u := range solvers {
			lines = append(lines, fmt.Sprintf("🏆 %s (Streak: %d)", u.Username, u.Streak))
		}
		e.Fields = append(e.Fields, transport.EmbedField{
			Name:  fmt.Sprintf("Solvers (%d)", len(solvers)),
			Value: strings.Join(lines, "\n"),
		})
	}
	e.Footer = fmt.Sprintf("Total registered users: %d", total)
	return e
}

func leaderboardEmbed(top, active []domain.User, now time.Time) *transport.Embed {
	e := &transport.Embed{Title: "🏆 LeetCode Leaderboard", Color: colorGold}
	if len(top) > 0 {
		lines := make([]string, 0, len(top))
		for i, u := range top {
			medal := "🏅"
			if i < len(medals) {
				medal = medals[i]
			}
			lines = append(lines, fmt.Sprintf("%s %s: %d", medal, u.Username, u.Streak))
		}
		e.Fields = append(e.Fields, transport.EmbedField{Name: "🔥 Top Streaks", Value: strings.Join(lines, "\n")})
	}
	if len(active) > 0 {
		lines := make([]string, 0, len(active))
		for _, u := range active {
			lines = append(lines, fmt.Sprintf("⚡ %s: %d (%s)", u.Username, u.Streak, daysAgo(now, *u.LastSolve)))
		}
		e.Fields = append(e.Fields, transport.EmbedField{Name: "⚡ Active Solvers", Value: strings.Join(lines, "\n")})
	}
	if len(top) == 0 && len(active) == 0 {
		e.Fields = append(e.Fields, transport.EmbedField{Name: "No Data", Value: "No users have solved problems yet!"})
	}
	return e
}

func daysAgo(now, t time.Time) string {
	d := int(now.Sub(t) / (24 * time.Hour))
	switch {
	case d <= 0:
		return "today"
	case d == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", d)
	}
}

func helpEmbed(specs []transport.CommandSpec) *transport.Embed {
	lines := make([]string, 0, len(specs))
	for _, c := range specs {
		line := fmt.Sprintf("`/%s` %s", c.Name, c.Description)
		lines = append(lines, line)
	}
	return &transport.Embed{
		Title:       "LeetCode Bot Commands",
		Description: strings.Join(lines, "\n"),
		Color:       colorGreen,
		Footer:      "Prefix commands work too, e.g. !setup_channel #daily hour=9 minute=0 difficulty=easy",
	}
}

func text(s string) transport.Reply {
	return transport.Reply{Message: transport.Message{Text: s}, Ephemeral: true}
}

func embed(e *transport.Embed, ephemeral bool) transport.Reply {
	return transport.Reply{Message: transport.Message{Embed: e}, Ephemeral: ephemeral}
}
