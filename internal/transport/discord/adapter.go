// Package discord connects the command layer to Discord through discordgo:
// slash commands, "!" text commands and channel posts.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"leetbot/internal/runtime/supervisor"
	"leetbot/internal/transport"
	logx "leetbot/pkg/logx"
)

// DefaultDeferAfter is how long a slash command may run before the adapter
// acknowledges it and edits the answer in later. Discord allows 3s.
const DefaultDeferAfter = 2 * time.Second

type Config struct {
	Token string
	// GuildID registers slash commands in one guild only. Empty registers
	// them globally.
	GuildID    string
	Prefix     string
	DeferAfter time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	s   Session

	mu         sync.Mutex
	running    bool
	handler    transport.Handler
	sup        *supervisor.Supervisor
	specs      []transport.CommandSpec
	specByName map[string]transport.CommandSpec
	removers   []func()
}

var _ transport.Adapter = (*Adapter)(nil)

// New opens nothing yet; Start connects.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return NewWithSession(cfg, s, log), nil
}

// NewWithSession wraps an existing session.
func NewWithSession(cfg Config, s Session, log logx.Logger) *Adapter {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DeferAfter <= 0 {
		cfg.DeferAfter = DefaultDeferAfter
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		cfg:        cfg,
		log:        log.With(logx.Component("discord")),
		s:          s,
		specByName: map[string]transport.CommandSpec{},
	}
}

// SetCommands sets the slash commands registered on the next Ready event.
func (a *Adapter) SetCommands(specs []transport.CommandSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.specs = append([]transport.CommandSpec(nil), specs...)
	a.specByName = make(map[string]transport.CommandSpec, len(specs))
	for _, c := range specs {
		a.specByName[c.Name] = c
	}
}

func (a *Adapter) Start(ctx context.Context, h transport.Handler) error {
	if h == nil {
		return errors.New("discord: nil handler")
	}
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.handler = h
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.removers = []func(){
		a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { a.onReady(r) }),
		a.s.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) { a.dispatch(func(ctx context.Context) { a.onInteraction(ctx, ic.Interaction) }) }),
		a.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { a.dispatch(func(ctx context.Context) { a.onMessage(ctx, m.Message) }) }),
	}
	a.running = true
	a.mu.Unlock()

	if err := a.s.Open(); err != nil {
		_ = a.Stop(context.Background())
		return fmt.Errorf("discord open: %w", err)
	}
	a.log.Info("discord connected", logx.String("prefix", a.cfg.Prefix))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	sup := a.sup
	removers := a.removers
	a.removers = nil
	a.mu.Unlock()

	for _, rm := range removers {
		if rm != nil {
			rm()
		}
	}
	var errs []error
	if sup != nil {
		if err := sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if err := a.s.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Send posts m to channelID. Unknown or forbidden channels are reported as
// transport.ErrChannelUnavailable.
func (a *Adapter) Send(ctx context.Context, channelID string, m transport.Message) error {
	if strings.TrimSpace(channelID) == "" {
		return transport.ErrChannelUnavailable
	}
	_, err := a.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: m.Text,
		Embeds:  embeds(m),
	}, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	if channelGone(err) {
		return fmt.Errorf("channel %s: %w: %v", channelID, transport.ErrChannelUnavailable, err)
	}
	return fmt.Errorf("send to %s: %w", channelID, err)
}

func (a *Adapter) dispatch(fn func(ctx context.Context)) {
	a.mu.Lock()
	sup := a.sup
	running := a.running
	a.mu.Unlock()
	if !running || sup == nil {
		return
	}
	sup.Go0("discord.event", fn)
}

func (a *Adapter) onReady(r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}
	appID := r.User.ID
	if r.Application != nil && r.Application.ID != "" {
		appID = r.Application.ID
	}
	a.mu.Lock()
	specs := a.specs
	a.mu.Unlock()

	cmds, err := a.s.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, applicationCommands(specs))
	if err != nil {
		a.log.Error("slash command registration failed", logx.Err(err))
		return
	}
	a.log.Info("discord ready",
		logx.User(r.User.Username),
		logx.Int("guilds", len(r.Guilds)),
		logx.Int("commands", len(cmds)),
		logx.String("scope", scope(a.cfg.GuildID)),
	)
}

func scope(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild:" + guildID
}

func (a *Adapter) onInteraction(ctx context.Context, i *discordgo.Interaction) {
	inv, ok := interactionInvocation(i)
	if !ok {
		return
	}
	h := a.currentHandler()
	if h == nil {
		return
	}

	var (
		mu       sync.Mutex
		done     bool
		deferred bool
	)
	timer := time.AfterFunc(a.cfg.DeferAfter, func() {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		deferred = true
		err := a.s.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		})
		if err != nil {
			a.log.Warn("interaction defer failed", logx.String("cmd", inv.Command), logx.Err(err))
		}
	})

	reply := h(ctx, inv)
	timer.Stop()

	mu.Lock()
	done = true
	wasDeferred := deferred
	mu.Unlock()

	if wasDeferred {
		content := reply.Text
		es := embeds(reply.Message)
		if _, err := a.s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content, Embeds: &es}); err != nil {
			a.log.Warn("interaction edit failed", logx.String("cmd", inv.Command), logx.Err(err))
		}
		return
	}
	err := a.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(reply),
	})
	if err != nil {
		a.log.Warn("interaction respond failed", logx.String("cmd", inv.Command), logx.Err(err))
	}
}

func (a *Adapter) onMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	a.mu.Lock()
	specs := a.specByName
	a.mu.Unlock()

	inv, ok, err := parsePrefix(m.Content, a.cfg.Prefix, specs)
	if !ok {
		return
	}
	var reply transport.Reply
	if err != nil {
		reply = transport.Reply{Message: transport.Message{Text: "Could not parse command: " + err.Error() + "."}}
	} else {
		inv.GuildID = m.GuildID
		inv.ChannelID = m.ChannelID
		inv.UserID = m.Author.ID
		if m.GuildID != "" {
			perms, perr := a.s.UserChannelPermissions(m.Author.ID, m.ChannelID, discordgo.WithContext(ctx))
			if perr != nil {
				a.log.Debug("permission lookup failed", logx.User(m.Author.ID), logx.Err(perr))
			}
			inv.IsAdmin = perms&discordgo.PermissionAdministrator != 0
		}
		h := a.currentHandler()
		if h == nil {
			return
		}
		reply = h(ctx, inv)
	}

	_, serr := a.s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   reply.Text,
		Embeds:    embeds(reply.Message),
		Reference: m.Reference(),
	}, discordgo.WithContext(ctx))
	if serr != nil {
		a.log.Warn("prefix reply failed", logx.String("cmd", inv.Command), logx.Err(serr))
	}
}

func (a *Adapter) currentHandler() transport.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler
}
