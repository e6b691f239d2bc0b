package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/track"
)

// queuePreview is the number of queued songs listed by the queue command.
const queuePreview = 10

func (r *Router) handlePing(ctx context.Context, inv Invocation) {
	r.reply(ctx, inv.Message, "Pong!")
}

func (r *Router) handlePrefix(ctx context.Context, inv Invocation) {
	msg := inv.Message

	if len(inv.Args) == 2 && strings.EqualFold(inv.Args[0], "set") {
		prefix := strings.Trim(inv.Args[1], "\"'")
		if prefix == "" || len(prefix) > 8 {
			r.reply(ctx, msg, "Failed to set prefix")
			return
		}
		if err := r.prefixes.SetPrefix(ctx, msg.GuildID, prefix); err != nil {
			zlog.Error().Msgf("failed to set prefix: guild=%s error=%v", msg.GuildID, err)
			r.reply(ctx, msg, "Failed to set prefix")
			return
		}
		zlog.Info().Msgf("prefix changed: guild=%s prefix=%s", msg.GuildID, prefix)
		r.reply(ctx, msg, fmt.Sprintf("Prefix set to `%s`", prefix))
		return
	}

	prefix, ok, err := r.prefixes.GetPrefix(ctx, msg.GuildID)
	switch {
	case err != nil:
		zlog.Error().Msgf("failed to get prefix: guild=%s error=%v", msg.GuildID, err)
		r.reply(ctx, msg, "Failed to get prefix")
	case !ok:
		r.reply(ctx, msg, "No prefix set")
	default:
		r.reply(ctx, msg, fmt.Sprintf("Prefix is `%s`", prefix))
	}
}

func (r *Router) handleJoin(ctx context.Context, inv Invocation) {
	msg := inv.Message

	channelID, ok := r.voice.UserVoiceChannel(msg.GuildID, msg.AuthorID)
	if !ok {
		r.reply(ctx, msg, "Not in a voice channel")
		return
	}

	if err := r.sessions.Join(ctx, msg.GuildID, channelID); err != nil {
		zlog.Warn().Msgf("join failed: guild=%s channel=%s error=%v", msg.GuildID, channelID, err)
		r.reply(ctx, msg, "Failed to join voice channel")
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("Joined <#%s>", channelID))
}

func (r *Router) handlePlay(ctx context.Context, inv Invocation) {
	msg := inv.Message

	channelID, ok := r.voice.UserVoiceChannel(msg.GuildID, msg.AuthorID)
	if !ok {
		r.reply(ctx, msg, "Not in a voice channel to play in")
		return
	}

	req, err := track.ParsePlayRequest(inv.Args)
	if err != nil {
		r.reply(ctx, msg, "No video or audio provided")
		return
	}

	result, err := r.sessions.Play(ctx, session.PlayInput{
		GuildID:      msg.GuildID,
		VoiceChannel: channelID,
		TextChannel:  msg.ChannelID,
		Request:      req,
		Requester:    track.Requester{ID: msg.AuthorID, Name: msg.AuthorName},
	})
	switch {
	case errors.Is(err, session.ErrJoin):
		zlog.Warn().Msgf("play failed to join: guild=%s channel=%s error=%v", msg.GuildID, channelID, err)
		r.reply(ctx, msg, "Failed to join voice channel")
	case errors.Is(err, session.ErrClosed):
		r.reply(ctx, msg, r.config.Messages.DefaultError)
	case err != nil:
		// The guild state already told the channel why the song failed.
		zlog.Debug().Msgf("play failed: guild=%s request=%q error=%v", msg.GuildID, req.String(), err)
	case result.Rejected:
		r.reply(ctx, msg, r.config.GetMessage(result.Code))
	}
}

func (r *Router) handleSkip(ctx context.Context, inv Invocation) {
	msg := inv.Message

	n := 1
	if len(inv.Args) > 0 {
		parsed, err := strconv.Atoi(inv.Args[0])
		if err != nil || parsed < 1 {
			r.reply(ctx, msg, "Expected a positive whole number")
			return
		}
		n = parsed
	}

	result, err := r.sessions.Skip(msg.GuildID, n)
	switch {
	case errors.Is(err, playback.ErrNotPlaying):
		r.reply(ctx, msg, "Not playing so can't skip")
	case err != nil:
		zlog.Error().Msgf("skip failed: guild=%s n=%d error=%v", msg.GuildID, n, err)
		r.reply(ctx, msg, "Failed to skip")
	case result.Remaining > 0:
		// The next song leaves the queue as it starts.
		r.reply(ctx, msg, fmt.Sprintf("Skipping %d (%d tracks in queue)", n, result.Remaining-1))
	default:
		r.reply(ctx, msg, "Skipping, no more tracks to play")
	}
}

func (r *Router) handlePause(ctx context.Context, inv Invocation) {
	msg := inv.Message

	err := r.sessions.Pause(msg.GuildID)
	switch {
	case err == nil:
		r.reply(ctx, msg, "Pausing")
	case errors.Is(err, playback.ErrNotPlaying):
		r.reply(ctx, msg, "Not playing so can't pause")
	default:
		zlog.Error().Msgf("pause failed: guild=%s error=%v", msg.GuildID, err)
		r.reply(ctx, msg, "Failed to pause")
	}
}

func (r *Router) handleUnpause(ctx context.Context, inv Invocation) {
	msg := inv.Message

	err := r.sessions.Unpause(msg.GuildID)
	switch {
	case err == nil:
		r.reply(ctx, msg, "Unpausing")
	case errors.Is(err, playback.ErrNotPaused):
		r.reply(ctx, msg, "Not paused so can't unpause")
	default:
		zlog.Error().Msgf("unpause failed: guild=%s error=%v", msg.GuildID, err)
		r.reply(ctx, msg, "Failed to unpause")
	}
}

func (r *Router) handleStop(ctx context.Context, inv Invocation) {
	msg := inv.Message

	err := r.sessions.Stop(ctx, msg.GuildID)
	switch {
	case err == nil:
		r.reply(ctx, msg, "Stopping")
	case errors.Is(err, playback.ErrNotConnected):
		r.reply(ctx, msg, "Not in a voice channel")
	default:
		zlog.Error().Msgf("stop failed: guild=%s error=%v", msg.GuildID, err)
		r.reply(ctx, msg, "Failed to stop")
	}
}

func (r *Router) handleQueue(ctx context.Context, inv Invocation) {
	snap, _ := r.sessions.Snapshot(inv.Message.GuildID)
	r.reply(ctx, inv.Message, formatQueue(snap))
}

// formatQueue renders the status line and the head of the queue.
func formatQueue(snap playback.Snapshot) string {
	var b strings.Builder

	switch snap.Status.State {
	case playback.StatePlaying:
		fmt.Fprintf(&b, "Now playing %s\n", snap.Status.Name)
	case playback.StatePaused:
		fmt.Fprintf(&b, "Paused %s\n", snap.Status.Name)
	}

	if len(snap.Queue) == 0 {
		b.WriteString("Queue is empty")
		return b.String()
	}

	for i, song := range snap.Queue {
		if i == queuePreview {
			fmt.Fprintf(&b, "...and %d more", len(snap.Queue)-queuePreview)
			break
		}
		fmt.Fprintf(&b, "%d. %s (requested by %s)\n", i+1, song.DisplayName, song.Requester.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}
