package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Errors
var (
	ErrResolution   = errors.New("track resolution failed")
	ErrPlayback     = errors.New("playback command failed")
	ErrNotPlaying   = errors.New("not playing")
	ErrNotPaused    = errors.New("not paused")
	ErrNotConnected = errors.New("not connected to a voice channel")
	ErrInvalidSkip  = errors.New("skip count must be a positive number")
)

// Config holds guild state configuration.
type Config struct {
	ResolveTimeout time.Duration // Upper bound for a single resolution (0 = none)
	Events         chan<- Event  // Optional event sink, never blocked on
}

// EnqueueResult describes what EnqueueOrStart did with the song.
type EnqueueResult struct {
	Started bool // Song started playing immediately
	Queued  bool // Song was appended to the queue
	Ahead   int  // Queue length after appending
}

// SkipResult describes the queue after a skip.
type SkipResult struct {
	Dropped   int // Songs discarded from the queue head
	Remaining int // Queue length after dropping
}

// Snapshot is a point-in-time copy of a guild's state.
type Snapshot struct {
	GuildID   snowflake.ID
	Status    Status
	Queue     []track.QueuedSong
	Connected bool
	Advancing bool
}

// GuildState is the music queue and playing status of one guild.
// All fields are guarded by mu. The lock is never held across a
// TrackSource or Notifier call.
type GuildState struct {
	mu sync.Mutex

	guildID snowflake.ID

	queue   []track.QueuedSong
	status  Status
	handle  Handle
	channel Channel

	// advancing is set while a resolve-then-start owns the right to start
	// the next track. Songs arriving meanwhile are queued.
	advancing bool
	// generation changes on every start attempt and every teardown.
	// An in-flight resolution only commits if it still holds the latest one.
	generation uint64

	source   TrackSource
	notifier Notifier
	config   Config
}

// NewGuildState creates an idle guild state.
func NewGuildState(guildID snowflake.ID, source TrackSource, notifier Notifier, config Config) *GuildState {
	return &GuildState{
		guildID:  guildID,
		queue:    make([]track.QueuedSong, 0),
		status:   Stopped(),
		source:   source,
		notifier: notifier,
		config:   config,
	}
}

// GuildID returns the guild this state belongs to.
func (g *GuildState) GuildID() snowflake.ID {
	return g.guildID
}

// Status returns the current playing status.
func (g *GuildState) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// QueueLen returns the number of songs waiting to be played.
func (g *GuildState) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Snapshot returns a copy of the current state.
func (g *GuildState) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := make([]track.QueuedSong, len(g.queue))
	copy(queue, g.queue)

	return Snapshot{
		GuildID:   g.guildID,
		Status:    g.status,
		Queue:     queue,
		Connected: g.channel != nil,
		Advancing: g.advancing,
	}
}

// SetChannel binds the playback channel used for subsequent starts.
func (g *GuildState) SetChannel(ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channel = ch
}

// EnqueueOrStart plays the song right away if the guild is idle, otherwise
// appends it to the queue. The origin channel of the song is notified either way.
func (g *GuildState) EnqueueOrStart(ctx context.Context, song track.QueuedSong, ch Channel) (EnqueueResult, error) {
	g.mu.Lock()
	if ch != nil {
		g.channel = ch
	}

	if g.status.State != StateStopped || g.advancing {
		g.queue = append(g.queue, song)
		ahead := len(g.queue)
		g.sendEventLocked(Event{
			Type:      EventSongQueued,
			Song:      &song,
			Status:    g.status,
			QueueSize: ahead,
		})
		g.mu.Unlock()

		zlog.Debug().Msgf("song queued: guild=%s song=%q ahead=%d", g.guildID, song.DisplayName, ahead)
		g.notify(ctx, song.OriginChannel, queuedMessage(song.DisplayName, ahead))
		return EnqueueResult{Queued: true, Ahead: ahead}, nil
	}

	token := g.beginAdvanceLocked()
	started, err := g.runLocked(context.WithoutCancel(ctx), &song, token)
	return EnqueueResult{Started: started}, err
}

// OnTrackFinished is the completion handler registered on every handle.
// It advances to the next queued song, or idles when the queue is empty.
// Completions from handles that are no longer active are ignored.
func (g *GuildState) OnTrackFinished(h Handle) {
	g.mu.Lock()
	if h == nil || g.handle != h || g.advancing {
		g.mu.Unlock()
		zlog.Debug().Msgf("ignoring stale track completion: guild=%s", g.guildID)
		return
	}

	g.sendEventLocked(Event{
		Type:      EventTrackEnded,
		Status:    g.status,
		QueueSize: len(g.queue),
	})

	token := g.beginAdvanceLocked()
	_, _ = g.runLocked(context.Background(), nil, token)
}

// Skip drops n-1 songs from the queue head and stops the active track.
// The completion of the stopped track advances the queue.
func (g *GuildState) Skip(n int) (SkipResult, error) {
	if n < 1 {
		return SkipResult{}, ErrInvalidSkip
	}

	g.mu.Lock()
	if g.status.State == StateStopped {
		g.mu.Unlock()
		return SkipResult{}, ErrNotPlaying
	}

	drop := n - 1
	if drop > len(g.queue) {
		drop = len(g.queue)
	}
	g.queue = append(make([]track.QueuedSong, 0, len(g.queue)-drop), g.queue[drop:]...)

	h := g.handle
	advancing := g.advancing
	result := SkipResult{Dropped: drop, Remaining: len(g.queue)}
	g.sendEventLocked(Event{
		Type:      EventSongsSkipped,
		Status:    g.status,
		QueueSize: len(g.queue),
	})
	g.mu.Unlock()

	zlog.Info().Msgf("skipping: guild=%s n=%d dropped=%d remaining=%d", g.guildID, n, drop, result.Remaining)

	// The active track already ended and its replacement is being resolved.
	if advancing {
		return result, nil
	}
	if err := h.Stop(); err != nil {
		return result, errors.Mark(errors.Wrap(err, "failed to stop track"), ErrPlayback)
	}
	return result, nil
}

// Pause pauses the active track.
func (g *GuildState) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status.State != StatePlaying || g.advancing {
		return ErrNotPlaying
	}
	if err := g.handle.Pause(); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to pause track"), ErrPlayback)
	}

	g.status = Paused(g.status.Name)
	g.sendEventLocked(Event{
		Type:      EventStateChanged,
		Status:    g.status,
		QueueSize: len(g.queue),
	})
	return nil
}

// Unpause resumes the paused track.
func (g *GuildState) Unpause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status.State != StatePaused || g.advancing {
		return ErrNotPaused
	}
	if err := g.handle.Resume(); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to resume track"), ErrPlayback)
	}

	g.status = Playing(g.status.Name)
	g.sendEventLocked(Event{
		Type:      EventStateChanged,
		Status:    g.status,
		QueueSize: len(g.queue),
	})
	return nil
}

// Stop disconnects from voice. Resolutions in flight are discarded when
// they complete. Clearing the queue and status is left to Teardown, which
// the connection manager calls once the guild has left.
func (g *GuildState) Stop(ctx context.Context) error {
	g.mu.Lock()
	ch := g.channel
	g.generation++
	g.advancing = false
	g.mu.Unlock()

	if ch == nil {
		return ErrNotConnected
	}
	if err := ch.Disconnect(ctx); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to disconnect"), ErrPlayback)
	}
	return nil
}

// Teardown resets the guild to idle after it left voice.
func (g *GuildState) Teardown() {
	g.mu.Lock()
	h := g.handle
	dropped := len(g.queue)
	g.generation++
	g.advancing = false
	g.queue = make([]track.QueuedSong, 0)
	g.status = Stopped()
	g.handle = nil
	g.channel = nil
	g.sendEventLocked(Event{Type: EventTornDown, Status: g.status})
	g.mu.Unlock()

	zlog.Info().Msgf("guild session torn down: guild=%s dropped=%d", g.guildID, dropped)

	if h != nil {
		if err := h.Stop(); err != nil {
			zlog.Debug().Msgf("failed to stop track on teardown: guild=%s error=%v", g.guildID, err)
		}
	}
}

// beginAdvanceLocked claims the right to start the next track.
// Must be called with lock held.
func (g *GuildState) beginAdvanceLocked() uint64 {
	g.advancing = true
	g.generation++
	return g.generation
}

// runLocked resolves and starts songs until one plays or nothing is left.
// first, if set, is tried before the queue head. Must be called with lock
// held; returns with it released. The returned error concerns first only.
func (g *GuildState) runLocked(ctx context.Context, first *track.QueuedSong, token uint64) (bool, error) {
	var firstErr error

	for {
		var song track.QueuedSong
		isFirst := first != nil
		if isFirst {
			song = *first
			first = nil
		} else {
			if len(g.queue) == 0 {
				g.idleLocked()
				g.mu.Unlock()
				zlog.Info().Msgf("queue empty, playback stopped: guild=%s", g.guildID)
				return false, firstErr
			}
			song = g.queue[0]
			g.queue = g.queue[1:]
		}
		g.mu.Unlock()

		playable, err := g.resolve(ctx, song.Request)

		g.mu.Lock()
		if token != g.generation {
			g.mu.Unlock()
			zlog.Info().Msgf("discarding song resolved after stop: guild=%s song=%q", g.guildID, song.DisplayName)
			return false, firstErr
		}

		if err == nil {
			err = g.startLocked(ctx, song, playable)
		}
		if err == nil {
			h := g.handle
			remaining := len(g.queue)
			g.mu.Unlock()

			h.OnFinished(func() { g.OnTrackFinished(h) })

			zlog.Info().Msgf("now playing: guild=%s title=%q url=%s queue=%d", g.guildID, playable.Title, playable.URL, remaining)
			g.notify(ctx, song.OriginChannel, nowPlayingMessage(playable, remaining))
			return isFirst, firstErr
		}

		g.sendEventLocked(Event{
			Type:      EventResolveFailed,
			Song:      &song,
			Status:    g.status,
			QueueSize: len(g.queue),
			Err:       err,
		})
		g.mu.Unlock()

		zlog.Warn().Msgf("failed to play song, skipping: guild=%s song=%q error=%v", g.guildID, song.DisplayName, err)
		g.notify(ctx, song.OriginChannel, failedMessage(song.DisplayName, err))
		if isFirst {
			firstErr = err
		}

		g.mu.Lock()
		if token != g.generation {
			g.mu.Unlock()
			return false, firstErr
		}
	}
}

// startLocked starts the resolved song on the bound channel and commits
// the playing status. Nothing is committed on error.
// Must be called with lock held.
func (g *GuildState) startLocked(ctx context.Context, song track.QueuedSong, playable *track.Playable) error {
	if g.channel == nil {
		return ErrNotConnected
	}

	h, err := g.channel.Start(ctx, playable)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to start track"), ErrPlayback)
	}

	g.handle = h
	g.status = Playing(song.DisplayName)
	g.advancing = false
	g.sendEventLocked(Event{
		Type:      EventTrackStarted,
		Song:      &song,
		Status:    g.status,
		QueueSize: len(g.queue),
	})
	return nil
}

// idleLocked moves to the stopped status.
// Must be called with lock held.
func (g *GuildState) idleLocked() {
	g.status = Stopped()
	g.handle = nil
	g.advancing = false
	g.sendEventLocked(Event{Type: EventQueueEmpty, Status: g.status})
}

func (g *GuildState) resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	if g.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.ResolveTimeout)
		defer cancel()
	}

	p, err := g.source.Resolve(ctx, req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to resolve %q", req.String()), ErrResolution)
	}
	if p == nil {
		return nil, errors.Mark(errors.Newf("no track found for %q", req.String()), ErrResolution)
	}
	return p, nil
}

func (g *GuildState) notify(ctx context.Context, channelID snowflake.ID, text string) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Send(ctx, channelID, text); err != nil {
		zlog.Warn().Msgf("failed to send notification: guild=%s channel=%s error=%v", g.guildID, channelID, err)
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (g *GuildState) sendEventLocked(e Event) {
	if g.config.Events == nil {
		return
	}
	e.GuildID = g.guildID
	select {
	case g.config.Events <- e:
	default:
		zlog.Debug().Msgf("event dropped, sink full: guild=%s type=%s", g.guildID, e.Type)
	}
}

func queuedMessage(name string, ahead int) string {
	return fmt.Sprintf("Queued %s, %d tracks ahead", name, ahead)
}

func nowPlayingMessage(p *track.Playable, remaining int) string {
	if p.URL == "" {
		return fmt.Sprintf("Now playing %s, %d tracks in queue", p.Title, remaining)
	}
	return fmt.Sprintf("Now playing %s (<%s>), %d tracks in queue", p.Title, p.URL, remaining)
}

func failedMessage(name string, err error) string {
	reason := "unknown error"
	if err != nil {
		reason = errors.UnwrapAll(err).Error()
	}
	return fmt.Sprintf("Failed to play %s: %s", name, reason)
}
