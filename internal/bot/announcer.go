package bot

import (
	"context"

	"leetbot/internal/daily"
	"leetbot/internal/transport"
)

// Announcer renders daily posts for a chat Sender. It implements
// daily.Publisher.
type Announcer struct {
	sender transport.Sender
}

func NewAnnouncer(s transport.Sender) *Announcer {
	return &Announcer{sender: s}
}

func (a *Announcer) PublishProblem(ctx context.Context, p daily.Post) error {
	return a.sender.Send(ctx, p.ChannelID, transport.Message{Embed: problemEmbed(p)})
}

func (a *Announcer) announceSolve(ctx context.Context, channelID, userID, title string, streak int) error {
	return a.sender.Send(ctx, channelID, transport.Message{Embed: solvedEmbed(userID, title, streak)})
}
