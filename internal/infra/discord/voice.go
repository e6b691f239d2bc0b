package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/audio"
)

// ErrVoiceNotReady is returned when a voice connection never became ready.
var ErrVoiceNotReady = errors.New("voice connection not ready")

const readyPoll = 100 * time.Millisecond

// voiceConn is the part of a voice connection the manager drives.
type voiceConn interface {
	Ready() bool
	Speaking(on bool) error
	Frames() chan<- []byte
	Disconnect() error
}

// joinFunc opens a voice connection.
type joinFunc func(guildID, channelID string, mute, deaf bool) (voiceConn, error)

// Player streams a media URL as opus frames.
type Player interface {
	Stream(streamURL string, out chan<- []byte) (playback.Handle, error)
}

// AudioPlayer adapts audio.Player to Player.
type AudioPlayer struct {
	*audio.Player
}

// Stream starts a playback.
func (p AudioPlayer) Stream(streamURL string, out chan<- []byte) (playback.Handle, error) {
	pb, err := p.Play(streamURL, out)
	if err != nil {
		return nil, err
	}
	return pb, nil
}

// VoiceManager owns the bot's voice connections, one per guild.
type VoiceManager struct {
	join     joinFunc
	player   Player
	selfDeaf bool
	timeout  time.Duration

	mu      sync.Mutex
	conns   map[snowflake.ID]*VoiceChannel
	onLeave func(guildID snowflake.ID)
}

// NewVoiceManager creates a voice manager on the session.
func NewVoiceManager(session *discordgo.Session, player Player, selfDeaf bool) *VoiceManager {
	m := newVoiceManager(func(guildID, channelID string, mute, deaf bool) (voiceConn, error) {
		vc, err := session.ChannelVoiceJoin(guildID, channelID, mute, deaf)
		if err != nil {
			return nil, err
		}
		return dgVoice{vc}, nil
	}, player, selfDeaf)
	session.AddHandler(m.onVoiceStateUpdate)
	return m
}

func newVoiceManager(join joinFunc, player Player, selfDeaf bool) *VoiceManager {
	return &VoiceManager{
		join:     join,
		player:   player,
		selfDeaf: selfDeaf,
		timeout:  10 * time.Second,
		conns:    make(map[snowflake.ID]*VoiceChannel),
	}
}

// SetOnLeave registers the hook run after the bot leaves a guild's voice channel.
func (m *VoiceManager) SetOnLeave(fn func(guildID snowflake.ID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLeave = fn
}

// Join connects to the voice channel, reusing the guild's connection when it
// is already in that channel.
func (m *VoiceManager) Join(ctx context.Context, guildID, channelID snowflake.ID) (playback.Channel, error) {
	m.mu.Lock()
	if vc, ok := m.conns[guildID]; ok && vc.channelID == channelID {
		m.mu.Unlock()
		return vc, nil
	}
	m.mu.Unlock()

	conn, err := m.join(guildID.String(), channelID.String(), false, m.selfDeaf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}
	if err := waitReady(ctx, conn, m.timeout); err != nil {
		_ = conn.Disconnect()
		return nil, err
	}

	vc := &VoiceChannel{
		manager:   m,
		guildID:   guildID,
		channelID: channelID,
		conn:      conn,
	}

	m.mu.Lock()
	// Joining another channel in the same guild moves the existing connection.
	m.conns[guildID] = vc
	m.mu.Unlock()

	zlog.Info().Msgf("joined voice channel: guild=%s channel=%s", guildID, channelID)
	return vc, nil
}

// Leave disconnects from the guild's voice channel and runs the leave hook.
func (m *VoiceManager) Leave(ctx context.Context, guildID snowflake.ID) error {
	vc, ok := m.forget(guildID)
	if !ok {
		return playback.ErrNotConnected
	}

	err := vc.conn.Disconnect()
	m.left(guildID)
	if err != nil {
		return errors.Wrapf(err, "failed to disconnect from guild %s", guildID)
	}
	zlog.Info().Msgf("left voice channel: guild=%s channel=%s", guildID, vc.channelID)
	return nil
}

// Close leaves every voice channel.
func (m *VoiceManager) Close(ctx context.Context) {
	m.mu.Lock()
	ids := make([]snowflake.ID, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Leave(ctx, id); err != nil {
			zlog.Warn().Msgf("failed to leave voice channel on close: guild=%s error=%v", id, err)
		}
	}
}

func (m *VoiceManager) forget(guildID snowflake.ID) (*VoiceChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vc, ok := m.conns[guildID]
	if ok {
		delete(m.conns, guildID)
	}
	return vc, ok
}

func (m *VoiceManager) left(guildID snowflake.ID) {
	m.mu.Lock()
	hook := m.onLeave
	m.mu.Unlock()
	if hook != nil {
		hook(guildID)
	}
}

// onVoiceStateUpdate treats the bot being kicked or moved out of voice as a leave.
func (m *VoiceManager) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil || s.State.User == nil || e.UserID != s.State.User.ID || e.ChannelID != "" {
		return
	}
	guildID, err := snowflake.Parse(e.GuildID)
	if err != nil {
		return
	}
	if _, ok := m.forget(guildID); ok {
		zlog.Info().Msgf("disconnected from voice externally: guild=%s", guildID)
		m.left(guildID)
	}
}

// VoiceChannel is a joined voice channel. It implements playback.Channel.
type VoiceChannel struct {
	manager   *VoiceManager
	guildID   snowflake.ID
	channelID snowflake.ID
	conn      voiceConn
}

// ID returns the voice channel ID.
func (c *VoiceChannel) ID() snowflake.ID {
	return c.channelID
}

// Start streams the track into the channel.
// It is called with the guild locked and never waits for readiness.
func (c *VoiceChannel) Start(ctx context.Context, p *track.Playable) (playback.Handle, error) {
	if p == nil || p.StreamURL == "" {
		return nil, errors.New("track has no stream url")
	}
	if !c.conn.Ready() {
		return nil, ErrVoiceNotReady
	}

	if err := c.conn.Speaking(true); err != nil {
		zlog.Debug().Msgf("failed to set speaking: guild=%s error=%v", c.guildID, err)
	}

	h, err := c.manager.player.Stream(p.StreamURL, c.conn.Frames())
	if err != nil {
		_ = c.conn.Speaking(false)
		return nil, errors.Wrapf(err, "failed to start stream for %q", p.Title)
	}

	h.OnFinished(func() {
		if err := c.conn.Speaking(false); err != nil {
			zlog.Debug().Msgf("failed to clear speaking: guild=%s error=%v", c.guildID, err)
		}
	})
	return h, nil
}

// Disconnect leaves the channel.
func (c *VoiceChannel) Disconnect(ctx context.Context) error {
	return c.manager.Leave(ctx, c.guildID)
}

func waitReady(ctx context.Context, conn voiceConn, timeout time.Duration) error {
	if conn.Ready() {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if conn.Ready() {
				return nil
			}
		case <-deadline.C:
			return ErrVoiceNotReady
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for voice connection")
		}
	}
}

// dgVoice adapts a discordgo voice connection.
type dgVoice struct {
	vc *discordgo.VoiceConnection
}

func (d dgVoice) Ready() bool {
	d.vc.RLock()
	defer d.vc.RUnlock()
	return d.vc.Ready
}

func (d dgVoice) Speaking(on bool) error {
	return d.vc.Speaking(on)
}

func (d dgVoice) Frames() chan<- []byte {
	return d.vc.OpusSend
}

func (d dgVoice) Disconnect() error {
	return d.vc.Disconnect()
}
