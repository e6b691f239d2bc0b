// Package command routes prefixed chat messages to the music commands.
package command

import (
	"context"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/chat"
	"github.com/osa030/guildbox/internal/infra/config"
)

// Sessions is the part of the session manager the commands drive.
type Sessions interface {
	Play(ctx context.Context, in session.PlayInput) (session.PlayResult, error)
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Skip(guildID snowflake.ID, n int) (playback.SkipResult, error)
	Pause(guildID snowflake.ID) error
	Unpause(guildID snowflake.ID) error
	Stop(ctx context.Context, guildID snowflake.ID) error
	Snapshot(guildID snowflake.ID) (playback.Snapshot, bool)
}

// Prefixes persists per-guild command prefixes.
type Prefixes interface {
	GetPrefix(ctx context.Context, guildID snowflake.ID) (string, bool, error)
	SetPrefix(ctx context.Context, guildID snowflake.ID, prefix string) error
}

// VoiceLocator finds the voice channel a member is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, bool)
}

// Deps holds the components commands use.
type Deps struct {
	Sessions Sessions
	Prefixes Prefixes
	Voice    VoiceLocator
	Notifier playback.Notifier
}

// Invocation is a parsed command message.
type Invocation struct {
	Message chat.Message
	Name    string   // Lowercased command name
	Args    []string // Whitespace separated arguments
}

// handlerFunc runs one command. Every handler replies exactly once,
// except play whose reply is sent by the guild state.
type handlerFunc func(ctx context.Context, inv Invocation)

// Router dispatches chat messages to command handlers.
type Router struct {
	config   *config.Config
	sessions Sessions
	prefixes Prefixes
	voice    VoiceLocator
	notifier playback.Notifier
	commands map[string]handlerFunc
}

// NewRouter creates a router with the built-in commands.
func NewRouter(cfg *config.Config, deps Deps) *Router {
	r := &Router{
		config:   cfg,
		sessions: deps.Sessions,
		prefixes: deps.Prefixes,
		voice:    deps.Voice,
		notifier: deps.Notifier,
	}

	r.commands = map[string]handlerFunc{
		"ping":     r.handlePing,
		"prefix":   r.handlePrefix,
		"join":     r.handleJoin,
		"joinchan": r.handleJoin,
		"play":     r.handlePlay,
		"search":   r.handlePlay,
		"skip":     r.handleSkip,
		"pause":    r.handlePause,
		"unpause":  r.handleUnpause,
		"resume":   r.handleUnpause,
		"stop":     r.handleStop,
		"quit":     r.handleStop,
		"leave":    r.handleStop,
		"queue":    r.handleQueue,
	}
	return r
}

// HandleMessage runs the command contained in msg, if any.
func (r *Router) HandleMessage(ctx context.Context, msg chat.Message) {
	if msg.AuthorBot {
		return
	}

	prefix := r.prefixFor(ctx, msg.GuildID)
	inv, ok := parse(msg, prefix)
	if !ok {
		return
	}

	handler, ok := r.commands[inv.Name]
	if !ok {
		zlog.Debug().Msgf("unknown command: name=%s guild=%s", inv.Name, msg.GuildID)
		return
	}

	if !msg.InGuild() {
		r.reply(ctx, msg, "This command can only be used in a guild")
		return
	}

	zlog.Debug().Msgf("command: name=%s guild=%s author=%s args=%d", inv.Name, msg.GuildID, msg.AuthorName, len(inv.Args))
	handler(ctx, inv)
}

// Commands returns the names of all registered commands.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// prefixFor returns the guild's prefix, falling back to the default.
func (r *Router) prefixFor(ctx context.Context, guildID snowflake.ID) string {
	if guildID == 0 || r.prefixes == nil {
		return r.config.Discord.DefaultPrefix
	}

	prefix, ok, err := r.prefixes.GetPrefix(ctx, guildID)
	if err != nil {
		zlog.Warn().Msgf("failed to load prefix, using default: guild=%s error=%v", guildID, err)
		return r.config.Discord.DefaultPrefix
	}
	if !ok || prefix == "" {
		return r.config.Discord.DefaultPrefix
	}
	return prefix
}

func (r *Router) reply(ctx context.Context, msg chat.Message, text string) {
	if err := r.notifier.Send(ctx, msg.ChannelID, text); err != nil {
		zlog.Warn().Msgf("failed to send reply: channel=%s error=%v", msg.ChannelID, err)
	}
}

// parse splits a prefixed message into a command invocation.
func parse(msg chat.Message, prefix string) (Invocation, bool) {
	content := strings.TrimSpace(msg.Content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Invocation{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return Invocation{}, false
	}

	return Invocation{
		Message: msg,
		Name:    strings.ToLower(fields[0]),
		Args:    fields[1:],
	}, true
}
