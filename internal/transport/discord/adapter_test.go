package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leetbot/internal/transport"
	logx "leetbot/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func minMax(lo, hi int) (*int, *int) { return &lo, &hi }

func testSpecs() []transport.CommandSpec {
	lo, hi := minMax(0, 23)
	return []transport.CommandSpec{
		{
			Name: "setup_channel", Description: "setup", AdminOnly: true,
			Options: []transport.OptionSpec{
				{Name: "channel", Kind: transport.OptionChannel, Required: true},
				{Name: "hour", Kind: transport.OptionInteger, Min: lo, Max: hi},
				{Name: "minute", Kind: transport.OptionInteger},
				{Name: "difficulty", Kind: transport.OptionString, Choices: []transport.Choice{{Name: "Easy", Value: "easy"}}},
			},
		},
		{
			Name: "setup_username", Description: "link",
			Options: []transport.OptionSpec{{Name: "username", Kind: transport.OptionString, Required: true}},
		},
		{Name: "status", Description: "status"},
	}
}

func TestApplicationCommands(t *testing.T) {
	t.Parallel()
	cmds := applicationCommands(testSpecs())
	require.Len(t, cmds, 3)

	setup := cmds[0]
	require.NotNil(t, setup.DefaultMemberPermissions)
	assert.EqualValues(t, discordgo.PermissionAdministrator, *setup.DefaultMemberPermissions)
	require.Len(t, setup.Options, 4)
	assert.Equal(t, discordgo.ApplicationCommandOptionChannel, setup.Options[0].Type)
	assert.True(t, setup.Options[0].Required)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, setup.Options[1].Type)
	require.NotNil(t, setup.Options[1].MinValue)
	assert.Equal(t, 0.0, *setup.Options[1].MinValue)
	assert.Equal(t, 23.0, setup.Options[1].MaxValue)
	require.Len(t, setup.Options[3].Choices, 1)
	assert.Equal(t, "easy", setup.Options[3].Choices[0].Value)

	assert.Nil(t, cmds[2].DefaultMemberPermissions)
}

func slashInteraction(admin bool, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	var perms int64
	if admin {
		perms = discordgo.PermissionAdministrator
	}
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}, Permissions: perms},
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
}

func TestInteractionInvocation(t *testing.T) {
	t.Parallel()
	i := slashInteraction(true, "setup_channel",
		&discordgo.ApplicationCommandInteractionDataOption{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "123"},
		&discordgo.ApplicationCommandInteractionDataOption{Name: "hour", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(18)},
		&discordgo.ApplicationCommandInteractionDataOption{Name: "difficulty", Type: discordgo.ApplicationCommandOptionString, Value: "hard"},
	)
	inv, ok := interactionInvocation(i)
	require.True(t, ok)
	assert.Equal(t, "setup_channel", inv.Command)
	assert.Equal(t, "u1", inv.UserID)
	assert.Equal(t, "g1", inv.GuildID)
	assert.True(t, inv.IsAdmin)
	assert.Equal(t, map[string]string{"channel": "123", "hour": "18", "difficulty": "hard"}, inv.Args)

	_, ok = interactionInvocation(&discordgo.Interaction{Type: discordgo.InteractionPing})
	assert.False(t, ok)
}

func startedAdapter(t *testing.T, ms *mockSession, cfg Config, h transport.Handler) *Adapter {
	t.Helper()
	a := NewWithSession(cfg, ms, logx.Nop())
	a.SetCommands(testSpecs())
	require.NoError(t, a.Start(context.Background(), h))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestStartRegistersAndReady(t *testing.T) {
	ms := &mockSession{}
	a := startedAdapter(t, ms, Config{GuildID: "g-dev"}, func(context.Context, transport.Invocation) transport.Reply { return transport.Reply{} })
	assert.True(t, ms.opened)
	assert.Len(t, ms.handlers, 3)

	a.onReady(&discordgo.Ready{User: &discordgo.User{ID: "app", Username: "leetbot"}})
	assert.Equal(t, "app", ms.appID)
	assert.Equal(t, "g-dev", ms.guildID)
	assert.Len(t, ms.overwrite, 3)

	require.NoError(t, a.Stop(context.Background()))
	assert.True(t, ms.closed)
}

func TestStartOpenFailure(t *testing.T) {
	ms := &mockSession{openErr: errors.New("bad token")}
	a := NewWithSession(Config{}, ms, logx.Nop())
	err := a.Start(context.Background(), func(context.Context, transport.Invocation) transport.Reply { return transport.Reply{} })
	require.Error(t, err)
	assert.True(t, ms.closed)
}

func TestInteractionImmediateReply(t *testing.T) {
	ms := &mockSession{}
	var got transport.Invocation
	a := startedAdapter(t, ms, Config{}, func(_ context.Context, inv transport.Invocation) transport.Reply {
		got = inv
		return transport.Reply{Message: transport.Message{Text: "ok"}, Ephemeral: true}
	})

	a.onInteraction(context.Background(), slashInteraction(false, "status"))
	assert.Equal(t, "status", got.Command)
	require.Len(t, ms.responses, 1)
	r := ms.responses[0]
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, r.Type)
	assert.Equal(t, "ok", r.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.Data.Flags)
	assert.Empty(t, ms.edits)
}

func TestInteractionSlowReplyIsDeferred(t *testing.T) {
	ms := &mockSession{}
	a := startedAdapter(t, ms, Config{DeferAfter: 5 * time.Millisecond}, func(context.Context, transport.Invocation) transport.Reply {
		time.Sleep(50 * time.Millisecond)
		return transport.Reply{Message: transport.Message{Embed: &transport.Embed{Title: "Daily Problem Status"}}}
	})

	a.onInteraction(context.Background(), slashInteraction(false, "status"))

	ms.mu.Lock()
	defer ms.mu.Unlock()
	require.Len(t, ms.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, ms.responses[0].Type)
	require.Len(t, ms.edits, 1)
	require.NotNil(t, ms.edits[0].Embeds)
	assert.Equal(t, "Daily Problem Status", (*ms.edits[0].Embeds)[0].Title)
}

func TestPrefixMessage(t *testing.T) {
	ms := &mockSession{perms: discordgo.PermissionAdministrator}
	var got transport.Invocation
	a := startedAdapter(t, ms, Config{}, func(_ context.Context, inv transport.Invocation) transport.Reply {
		got = inv
		return transport.Reply{Message: transport.Message{Text: "done"}}
	})

	a.onMessage(context.Background(), &discordgo.Message{
		ID: "m0", GuildID: "g1", ChannelID: "c1",
		Author:  &discordgo.User{ID: "u1"},
		Content: "!setup_channel <#42> 18 minute=30",
	})
	assert.Equal(t, "setup_channel", got.Command)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "prefix", got.Source)
	assert.Equal(t, map[string]string{"channel": "<#42>", "hour": "18", "minute": "30"}, got.Args)
	require.Len(t, ms.sent, 1)
	assert.Equal(t, "done", ms.sent[0].Data.Content)
	assert.Equal(t, "m0", ms.sent[0].Data.Reference.MessageID)

	// Bots and plain chat are ignored.
	a.onMessage(context.Background(), &discordgo.Message{Author: &discordgo.User{ID: "b", Bot: true}, Content: "!status"})
	a.onMessage(context.Background(), &discordgo.Message{Author: &discordgo.User{ID: "u1"}, Content: "hello"})
	assert.Len(t, ms.sent, 1)
}

func TestParsePrefix(t *testing.T) {
	t.Parallel()
	specs := map[string]transport.CommandSpec{}
	for _, s := range testSpecs() {
		specs[s.Name] = s
	}

	inv, ok, err := parsePrefix(`!setup_username "john doe"`, "!", specs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "john doe", inv.Args["username"])

	inv, ok, err = parsePrefix(`!SETUP_CHANNEL   difficulty=easy   <#1>`, "!", specs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "setup_channel", inv.Command)
	assert.Equal(t, map[string]string{"channel": "<#1>", "difficulty": "easy"}, inv.Args)

	_, ok, _ = parsePrefix("!", "!", specs)
	assert.False(t, ok)
	_, ok, _ = parsePrefix("?status", "!", specs)
	assert.False(t, ok)

	_, ok, err = parsePrefix(`!setup_username "open`, "!", specs)
	assert.True(t, ok)
	assert.ErrorIs(t, err, errUnbalanced)
}

func TestSendMapsUnavailableChannel(t *testing.T) {
	t.Parallel()
	ms := &mockSession{}
	a := NewWithSession(Config{}, ms, logx.Nop())

	require.NoError(t, a.Send(context.Background(), "c1", transport.Message{Embed: &transport.Embed{Title: "t", Footer: "f"}}))
	require.Len(t, ms.sent, 1)
	assert.Equal(t, "f", ms.sent[0].Data.Embeds[0].Footer.Text)

	assert.ErrorIs(t, a.Send(context.Background(), "", transport.Message{Text: "x"}), transport.ErrChannelUnavailable)

	ms.sendErr = &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel},
	}
	assert.ErrorIs(t, a.Send(context.Background(), "gone", transport.Message{Text: "x"}), transport.ErrChannelUnavailable)

	ms.sendErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}}
	assert.ErrorIs(t, a.Send(context.Background(), "hidden", transport.Message{Text: "x"}), transport.ErrChannelUnavailable)

	ms.sendErr = errors.New("network down")
	err := a.Send(context.Background(), "c1", transport.Message{Text: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, transport.ErrChannelUnavailable)
}
