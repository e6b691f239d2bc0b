package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       *discordgo.Message
		wantGuild snowflake.ID
		wantErr   bool
	}{
		{
			name: "guild message",
			msg: &discordgo.Message{
				GuildID:   "100",
				ChannelID: "200",
				Content:   "~play song",
				Author:    &discordgo.User{ID: "300", Username: "member"},
			},
			wantGuild: 100,
		},
		{
			name: "direct message",
			msg: &discordgo.Message{
				ChannelID: "200",
				Content:   "~ping",
				Author:    &discordgo.User{ID: "300", Username: "member", Bot: true},
			},
			wantGuild: 0,
		},
		{
			name: "invalid channel id",
			msg: &discordgo.Message{
				ChannelID: "not-a-number",
				Author:    &discordgo.User{ID: "300"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toMessage(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantGuild, got.GuildID)
			assert.Equal(t, tt.wantGuild != 0, got.InGuild())
			assert.Equal(t, snowflake.ID(200), got.ChannelID)
			assert.Equal(t, snowflake.ID(300), got.AuthorID)
			assert.Equal(t, tt.msg.Content, got.Content)
			assert.Equal(t, tt.msg.Author.Bot, got.AuthorBot)
		})
	}
}
