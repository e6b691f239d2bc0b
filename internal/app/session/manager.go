// Package session provides the session manager.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/session/registry"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/config"
)

// Errors
var (
	ErrClosed = errors.New("session manager is closed")
	ErrJoin   = errors.New("failed to join voice channel")
)

// Voice joins guild voice channels.
type Voice interface {
	Join(ctx context.Context, guildID, channelID snowflake.ID) (playback.Channel, error)
}

// Observer receives every playback event and the guild count.
type Observer interface {
	Observe(e playback.Event)
	SetGuilds(n int)
}

// Deps holds the components the manager coordinates.
type Deps struct {
	Source   playback.TrackSource
	Notifier playback.Notifier
	Voice    Voice
	Filters  *filter.Chain // nil accepts everything
	Observer Observer      // optional
}

// PlayInput describes a play request from a guild member.
type PlayInput struct {
	GuildID      snowflake.ID
	VoiceChannel snowflake.ID // Voice channel to play in
	TextChannel  snowflake.ID // Channel that receives status messages
	Request      track.PlayRequest
	Requester    track.Requester
}

// PlayResult represents the outcome of a play request.
type PlayResult struct {
	playback.EnqueueResult
	Rejected bool
	Code     string // Filter rejection code
}

// Manager owns the guild registry and routes commands to guild states.
type Manager struct {
	mu     sync.RWMutex
	closed bool

	guilds   *registry.Guilds
	voice    Voice
	filters  *filter.Chain
	observer Observer

	events chan playback.Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager and starts its event loop.
func NewManager(cfg *config.Config, deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	buffer := cfg.Playback.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}

	m := &Manager{
		voice:    deps.Voice,
		filters:  deps.Filters,
		observer: deps.Observer,
		events:   make(chan playback.Event, buffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if m.filters == nil {
		m.filters = filter.NewChain()
	}

	stateConfig := playback.Config{
		ResolveTimeout: cfg.Playback.ResolveTimeout(),
		Events:         m.events,
	}
	m.guilds = registry.NewGuilds(func(guildID snowflake.ID) *playback.GuildState {
		return playback.NewGuildState(guildID, deps.Source, deps.Notifier, stateConfig)
	})

	go func() {
		defer close(m.done)
		m.eventLoop()
	}()

	return m
}

// Play joins the requester's voice channel, runs the request filters and
// hands the song to the guild state.
func (m *Manager) Play(ctx context.Context, in PlayInput) (PlayResult, error) {
	if m.isClosed() {
		return PlayResult{}, ErrClosed
	}

	ch, err := m.voice.Join(ctx, in.GuildID, in.VoiceChannel)
	if err != nil {
		return PlayResult{}, errors.Mark(errors.Wrapf(err, "failed to join voice channel %s", in.VoiceChannel), ErrJoin)
	}

	state := m.guilds.GetOrCreate(in.GuildID)
	song := track.NewQueuedSong(in.TextChannel, in.Request, in.Requester)

	result := m.filters.Execute(ctx, filter.Request{Song: song, Guild: state.Snapshot()})
	zlog.Info().Msgf("play request: guild=%s requester=%s request=%q accepted=%t code=%s",
		in.GuildID, in.Requester.Name, song.DisplayName, result.Accepted, result.Code)
	if !result.Accepted {
		state.SetChannel(ch)
		return PlayResult{Rejected: true, Code: result.Code}, nil
	}

	enqueued, err := state.EnqueueOrStart(ctx, song, ch)
	return PlayResult{EnqueueResult: enqueued}, err
}

// Join connects the guild to a voice channel without playing anything.
func (m *Manager) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	if m.isClosed() {
		return ErrClosed
	}

	ch, err := m.voice.Join(ctx, guildID, channelID)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to join voice channel %s", channelID), ErrJoin)
	}
	m.guilds.GetOrCreate(guildID).SetChannel(ch)
	return nil
}

// Skip skips n tracks in the guild.
func (m *Manager) Skip(guildID snowflake.ID, n int) (playback.SkipResult, error) {
	state, ok := m.guilds.Get(guildID)
	if !ok {
		if n < 1 {
			return playback.SkipResult{}, playback.ErrInvalidSkip
		}
		return playback.SkipResult{}, playback.ErrNotPlaying
	}
	return state.Skip(n)
}

// Pause pauses the guild's active track.
func (m *Manager) Pause(guildID snowflake.ID) error {
	state, ok := m.guilds.Get(guildID)
	if !ok {
		return playback.ErrNotPlaying
	}
	return state.Pause()
}

// Unpause resumes the guild's paused track.
func (m *Manager) Unpause(guildID snowflake.ID) error {
	state, ok := m.guilds.Get(guildID)
	if !ok {
		return playback.ErrNotPaused
	}
	return state.Unpause()
}

// Stop disconnects the guild from voice.
func (m *Manager) Stop(ctx context.Context, guildID snowflake.ID) error {
	state, ok := m.guilds.Get(guildID)
	if !ok {
		return playback.ErrNotConnected
	}
	return state.Stop(ctx)
}

// OnLeave tears down the guild's state after the bot left voice.
// It is registered as the voice manager's leave hook.
func (m *Manager) OnLeave(guildID snowflake.ID) {
	state, ok := m.guilds.Get(guildID)
	if !ok {
		return
	}
	state.Teardown()
}

// Snapshot returns the guild's state, if the guild has any.
func (m *Manager) Snapshot(guildID snowflake.ID) (playback.Snapshot, bool) {
	state, ok := m.guilds.Get(guildID)
	if !ok {
		return playback.Snapshot{}, false
	}
	return state.Snapshot(), true
}

// Snapshots returns the state of every known guild.
func (m *Manager) Snapshots() []playback.Snapshot {
	return m.guilds.Snapshots()
}

// Close stops the event loop and tears down every guild.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.guilds.Range(func(state *playback.GuildState) bool {
		state.Teardown()
		return true
	})
	m.cancel()
	<-m.done
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// eventLoop handles playback events.
func (m *Manager) eventLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.events:
			m.handleEvent(event)
		}
	}
}

// handleEvent handles a single playback event. A panicking observer
// only loses that event.
func (m *Manager) handleEvent(event playback.Event) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback event handler panicked: type=%s guild=%s panic=%v", event.Type, event.GuildID, r)
		}
	}()

	switch event.Type {
	case playback.EventResolveFailed:
		zlog.Warn().Msgf("playback event: type=%s guild=%s queue=%d error=%v", event.Type, event.GuildID, event.QueueSize, event.Err)
	default:
		zlog.Debug().Msgf("playback event: type=%s guild=%s status=%s queue=%d", event.Type, event.GuildID, event.Status, event.QueueSize)
	}

	if m.observer == nil {
		return
	}
	m.observer.Observe(event)
	m.observer.SetGuilds(m.guilds.Len())
}
