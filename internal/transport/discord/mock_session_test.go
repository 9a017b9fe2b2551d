package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

type mockSession struct {
	mu sync.Mutex

	handlers  []interface{}
	opened    bool
	closed    bool
	openErr   error
	sendErr   error
	perms     int64
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	sent      []sentMessage
	overwrite []*discordgo.ApplicationCommand
	appID     string
	guildID   string
}

type sentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

func (m *mockSession) AddHandler(h interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
	return func() {}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return m.openErr
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appID, m.guildID, m.overwrite = appID, guildID, cmds
	return cmds, nil
}

func (m *mockSession) InteractionRespond(_ *discordgo.Interaction, r *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return nil
}

func (m *mockSession) InteractionResponseEdit(_ *discordgo.Interaction, e *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, e)
	return &discordgo.Message{}, nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{ChannelID: channelID, Data: data})
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func (m *mockSession) UserChannelPermissions(_, _ string, _ ...discordgo.RequestOption) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perms, nil
}
