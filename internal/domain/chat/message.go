// Package chat defines the chat messages the bot reacts to.
package chat

import (
	"github.com/disgoorg/snowflake/v2"
)

// Message is an incoming text message.
type Message struct {
	GuildID    snowflake.ID // 0 for direct messages
	ChannelID  snowflake.ID
	AuthorID   snowflake.ID
	AuthorName string
	AuthorBot  bool
	Content    string
}

// InGuild reports whether the message was sent in a guild channel.
func (m Message) InGuild() bool {
	return m.GuildID != 0
}
