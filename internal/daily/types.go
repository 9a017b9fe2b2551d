package daily

import (
	"context"
	"time"

	"leetbot/internal/domain"
)

// Outcome is the result class of a posting attempt.
type Outcome int

const (
	Posted Outcome = iota
	AlreadyPosted
	FetchFailed
	ChannelUnavailable
	NotConfigured
)

func (o Outcome) String() string {
	switch o {
	case Posted:
		return "posted"
	case AlreadyPosted:
		return "already_posted"
	case FetchFailed:
		return "fetch_failed"
	case ChannelUnavailable:
		return "channel_unavailable"
	case NotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// Result carries the outcome and, when one exists, today's record.
type Result struct {
	Outcome Outcome
	Record  domain.DailyProblemRecord
	Problem domain.Problem
	Channel string
}

// Provider fetches problems. ok=false means upstream was unavailable.
type Provider interface {
	FetchProblem(ctx context.Context, d domain.Difficulty) (domain.Problem, bool)
}

// Post is a render request for the presentation layer.
type Post struct {
	GuildID    string
	ChannelID  string
	Date       string
	Problem    domain.Problem
	Difficulty domain.Difficulty
	Test       bool
}

// Publisher renders and delivers a Post. It returns an error wrapping
// transport.ErrChannelUnavailable when the channel cannot be resolved.
type Publisher interface {
	PublishProblem(ctx context.Context, p Post) error
}

// PostEvent is the Data of daily.* bus events.
type PostEvent struct {
	GuildID    string    `json:"guild_id"`
	ChannelID  string    `json:"channel_id"`
	Date       string    `json:"date"`
	ProblemID  string    `json:"problem_id,omitempty"`
	Difficulty string    `json:"difficulty"`
	Outcome    string    `json:"outcome"`
	Test       bool      `json:"test,omitempty"`
	At         time.Time `json:"at"`
}
