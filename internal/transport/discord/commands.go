package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"leetbot/internal/transport"
)

var adminPermission int64 = discordgo.PermissionAdministrator

// applicationCommands converts command specs into slash command definitions.
// Admin-only commands are hidden from members without Administrator.
func applicationCommands(specs []transport.CommandSpec) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, c := range specs {
		ac := &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
		}
		if c.AdminOnly {
			ac.DefaultMemberPermissions = &adminPermission
		}
		for _, o := range c.Options {
			ac.Options = append(ac.Options, applicationOption(o))
		}
		out = append(out, ac)
	}
	return out
}

func applicationOption(o transport.OptionSpec) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Name:        o.Name,
		Description: o.Description,
		Required:    o.Required,
	}
	switch o.Kind {
	case transport.OptionInteger:
		opt.Type = discordgo.ApplicationCommandOptionInteger
		if o.Min != nil {
			v := float64(*o.Min)
			opt.MinValue = &v
		}
		if o.Max != nil {
			opt.MaxValue = float64(*o.Max)
		}
	case transport.OptionChannel:
		opt.Type = discordgo.ApplicationCommandOptionChannel
		opt.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}
	default:
		opt.Type = discordgo.ApplicationCommandOptionString
	}
	for _, ch := range o.Choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: ch.Name, Value: ch.Value})
	}
	return opt
}

// interactionInvocation flattens a slash command interaction.
func interactionInvocation(i *discordgo.Interaction) (transport.Invocation, bool) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return transport.Invocation{}, false
	}
	data := i.ApplicationCommandData()
	inv := transport.Invocation{
		Command:   data.Name,
		Args:      make(map[string]string, len(data.Options)),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Source:    "slash",
	}
	switch {
	case i.Member != nil:
		if i.Member.User != nil {
			inv.UserID = i.Member.User.ID
		}
		inv.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	case i.User != nil:
		inv.UserID = i.User.ID
	}
	for _, o := range data.Options {
		switch o.Type {
		case discordgo.ApplicationCommandOptionInteger:
			inv.Args[o.Name] = strconv.FormatInt(o.IntValue(), 10)
		case discordgo.ApplicationCommandOptionString:
			inv.Args[o.Name] = o.StringValue()
		default:
			inv.Args[o.Name] = fmt.Sprint(o.Value)
		}
	}
	return inv, true
}
