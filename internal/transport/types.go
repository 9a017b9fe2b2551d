// Package transport holds the platform-neutral shapes exchanged between the
// command layer and a chat adapter.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrChannelUnavailable is returned by Sender when the target channel does
// not exist or the bot cannot post there.
var ErrChannelUnavailable = errors.New("transport: channel unavailable")

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// Message is either plain text, an embed, or both.
type Message struct {
	Text  string
	Embed *Embed
}

// Reply answers an Invocation. Ephemeral replies are shown only to the caller
// when the platform supports it.
type Reply struct {
	Message
	Ephemeral bool
}

// Invocation is one parsed user command.
type Invocation struct {
	Command   string
	Args      map[string]string
	GuildID   string
	ChannelID string
	UserID    string
	IsAdmin   bool
	Source    string // "slash" or "prefix"
}

func (i Invocation) Arg(name string) (string, bool) {
	v, ok := i.Args[name]
	return v, ok
}

// Handler serves invocations.
type Handler func(ctx context.Context, inv Invocation) Reply

// Sender posts messages to channels.
type Sender interface {
	Send(ctx context.Context, channelID string, m Message) error
}

// Adapter is a running chat platform connection.
type Adapter interface {
	Sender
	// SetCommands declares the command surface. Call it before Start.
	SetCommands(specs []CommandSpec)
	Start(ctx context.Context, h Handler) error
	Stop(ctx context.Context) error
}

type OptionKind int

const (
	OptionString OptionKind = iota
	OptionInteger
	OptionChannel
)

// Choice is one allowed option value with its display name.
type Choice struct {
	Name  string
	Value string
}

type OptionSpec struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
	Choices     []Choice
	Min, Max    *int
}

// CommandSpec describes a command for platform registration and help.
type CommandSpec struct {
	Name        string
	Description string
	AdminOnly   bool
	Options     []OptionSpec
}

// Mention helpers use Discord markup, which is what the only adapter renders.
func UserMention(id string) string    { return "<@" + id + ">" }
func ChannelMention(id string) string { return "<#" + id + ">" }
