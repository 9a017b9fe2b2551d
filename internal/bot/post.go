package bot

import (
	"context"
	"fmt"

	"leetbot/internal/daily"
	"leetbot/internal/transport"
)

func (s *Service) postNow(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	res, err := s.poster.PostForGuild(ctx, inv.GuildID)
	if err != nil {
		return transport.Reply{}, err
	}
	switch res.Outcome {
	case daily.Posted:
		return text(fmt.Sprintf("Posted %s problem to %s!", res.Record.Difficulty, transport.ChannelMention(res.Channel))), nil
	case daily.AlreadyPosted:
		return text("Today's problem has already been posted."), nil
	default:
		return postFailure(res)
	}
}

func (s *Service) testPost(ctx context.Context, inv transport.Invocation) (transport.Reply, error) {
	res, err := s.poster.TestPost(ctx, inv.GuildID)
	if err != nil {
		return transport.Reply{}, err
	}
	if res.Outcome == daily.Posted {
		return text(fmt.Sprintf("Test post sent to %s!", transport.ChannelMention(res.Channel))), nil
	}
	return postFailure(res)
}

func postFailure(res daily.Result) (transport.Reply, error) {
	switch res.Outcome {
	case daily.NotConfigured:
		return transport.Reply{}, &NotConfiguredError{Msg: msgNoConfig}
	case daily.FetchFailed:
		return text(msgFetchFailed), nil
	case daily.ChannelUnavailable:
		return text(msgNoChannel), nil
	default:
		return transport.Reply{}, fmt.Errorf("unexpected post outcome %s", res.Outcome)
	}
}
