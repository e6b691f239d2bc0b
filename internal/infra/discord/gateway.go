// Package discord connects the bot to the Discord gateway and voice.
package discord

import (
	"context"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/chat"
)

// MessageHandler handles an incoming chat message.
type MessageHandler func(ctx context.Context, msg chat.Message)

// Gateway is the bot's Discord session.
type Gateway struct {
	session *discordgo.Session
	handler MessageHandler
}

// NewGateway creates a gateway session for the bot token.
func NewGateway(token string) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	g := &Gateway{session: session}
	session.AddHandler(g.onReady)
	session.AddHandler(g.onMessageCreate)
	return g, nil
}

// Session returns the underlying discordgo session.
func (g *Gateway) Session() *discordgo.Session {
	return g.session
}

// SetHandler sets the message handler. Must be called before Open.
func (g *Gateway) SetHandler(h MessageHandler) {
	g.handler = h
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// SendMessage posts content to a text channel.
func (g *Gateway) SendMessage(channelID string, content string) error {
	_, err := g.session.ChannelMessageSend(channelID, content)
	return err
}

// UserVoiceChannel returns the voice channel the user is in.
func (g *Gateway) UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, bool) {
	vs, err := g.session.State.VoiceState(guildID.String(), userID.String())
	if err != nil || vs == nil || vs.ChannelID == "" {
		return 0, false
	}
	id, err := snowflake.Parse(vs.ChannelID)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("connected to discord: user=%s guilds=%d", r.User.Username, len(r.Guilds))
}

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if g.handler == nil || m.Author == nil {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	msg, err := toMessage(m.Message)
	if err != nil {
		zlog.Debug().Msgf("ignoring message with invalid ids: id=%s error=%v", m.ID, err)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				zlog.Error().Msgf("panic in message handler: %v\n%s", r, debug.Stack())
			}
		}()
		g.handler(context.Background(), msg)
	}()
}

// toMessage converts a discordgo message.
func toMessage(m *discordgo.Message) (chat.Message, error) {
	channelID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "channel id")
	}
	authorID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "author id")
	}

	var guildID snowflake.ID
	if m.GuildID != "" {
		if guildID, err = snowflake.Parse(m.GuildID); err != nil {
			return chat.Message{}, errors.Wrap(err, "guild id")
		}
	}

	return chat.Message{
		GuildID:    guildID,
		ChannelID:  channelID,
		AuthorID:   authorID,
		AuthorName: m.Author.Username,
		AuthorBot:  m.Author.Bot,
		Content:    m.Content,
	}, nil
}
