package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/config"
)

type stubSource struct{}

func (stubSource) Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	return &track.Playable{Title: req.Value(), URL: "https://example.com/" + req.Value()}, nil
}

type stubHandle struct {
	mu       sync.Mutex
	finished bool
	fns      []func()
}

func (h *stubHandle) Stop() error {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.finished = true
	h.mu.Unlock()
	for _, fn := range fns {
		go fn()
	}
	return nil
}

func (h *stubHandle) Pause() error  { return nil }
func (h *stubHandle) Resume() error { return nil }

func (h *stubHandle) OnFinished(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		go fn()
		return
	}
	h.fns = append(h.fns, fn)
}

type stubChannel struct {
	onDisconnect func()
}

func (c *stubChannel) Start(ctx context.Context, t *track.Playable) (playback.Handle, error) {
	return &stubHandle{}, nil
}

func (c *stubChannel) Disconnect(ctx context.Context) error {
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
	return nil
}

type stubVoice struct {
	mu      sync.Mutex
	channel *stubChannel
	err     error
	joins   int
}

func (v *stubVoice) Join(ctx context.Context, guildID, channelID snowflake.ID) (playback.Channel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joins++
	if v.err != nil {
		return nil, v.err
	}
	return v.channel, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Send(ctx context.Context, channelID snowflake.ID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *recordingNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []playback.EventType
	guilds int
	panics bool
}

func (o *recordingObserver) Observe(e playback.Event) {
	o.mu.Lock()
	o.events = append(o.events, e.Type)
	panics := o.panics
	o.mu.Unlock()
	if panics {
		panic("observer failure")
	}
}

func (o *recordingObserver) SetGuilds(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.guilds = n
}

func (o *recordingObserver) Has(t playback.EventType) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.events {
		if e == t {
			return true
		}
	}
	return false
}

type fixture struct {
	manager  *Manager
	voice    *stubVoice
	notifier *recordingNotifier
	observer *recordingObserver
}

func newFixture(t *testing.T, filters *filter.Chain) *fixture {
	t.Helper()

	f := &fixture{
		voice:    &stubVoice{channel: &stubChannel{}},
		notifier: &recordingNotifier{},
		observer: &recordingObserver{},
	}
	cfg := &config.Config{Playback: config.PlaybackConfig{ResolveTimeoutSec: 5, EventBuffer: 16}}
	f.manager = NewManager(cfg, Deps{
		Source:   stubSource{},
		Notifier: f.notifier,
		Voice:    f.voice,
		Filters:  filters,
		Observer: f.observer,
	})
	f.voice.channel.onDisconnect = func() { f.manager.OnLeave(guildID) }
	t.Cleanup(f.manager.Close)
	return f
}

const guildID = snowflake.ID(100)

func playInput(query string, requester snowflake.ID) PlayInput {
	return PlayInput{
		GuildID:      guildID,
		VoiceChannel: snowflake.ID(200),
		TextChannel:  snowflake.ID(300),
		Request:      track.NewSearch(query),
		Requester:    track.Requester{ID: requester, Name: "member"},
	}
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	assert.True(t, errors.Is(err, target), "expected %v, got %v", target, err)
}

func TestManager_PlayStartsThenQueues(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.manager.Play(context.Background(), playInput("one", 1))
	require.NoError(t, err)
	assert.True(t, first.Started)

	second, err := f.manager.Play(context.Background(), playInput("two", 1))
	require.NoError(t, err)
	assert.True(t, second.Queued)
	assert.Equal(t, 1, second.Ahead)

	snap, ok := f.manager.Snapshot(guildID)
	require.True(t, ok)
	assert.Equal(t, playback.Playing("one"), snap.Status)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, "two", snap.Queue[0].DisplayName)

	assert.Equal(t, []string{
		"Now playing one (<https://example.com/one>), 0 tracks in queue",
		"Queued two, 1 tracks ahead",
	}, f.notifier.Texts())

	assert.Eventually(t, func() bool {
		return f.observer.Has(playback.EventTrackStarted) && f.observer.Has(playback.EventSongQueued)
	}, time.Second, 10*time.Millisecond)
}

func TestManager_PlayRejectedByFilter(t *testing.T) {
	chain, err := filter.NewChainFromConfig(map[string]filter.Settings{
		"queue_limit_filter": {Enabled: true, Settings: map[string]any{"max_queue": 1}},
	})
	require.NoError(t, err)
	f := newFixture(t, chain)

	_, err = f.manager.Play(context.Background(), playInput("one", 1))
	require.NoError(t, err)
	_, err = f.manager.Play(context.Background(), playInput("two", 2))
	require.NoError(t, err)

	result, err := f.manager.Play(context.Background(), playInput("three", 3))
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Equal(t, "queue_full", result.Code)
	assert.False(t, result.Started)
	assert.False(t, result.Queued)

	snap, _ := f.manager.Snapshot(guildID)
	assert.Len(t, snap.Queue, 1)
}

func TestManager_PlayJoinError(t *testing.T) {
	f := newFixture(t, nil)
	f.voice.err = errors.New("missing permissions")

	_, err := f.manager.Play(context.Background(), playInput("one", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing permissions")
	assertIs(t, err, ErrJoin)

	_, ok := f.manager.Snapshot(guildID)
	assert.False(t, ok, "a failed join creates no state")
}

func TestManager_UnknownGuild(t *testing.T) {
	f := newFixture(t, nil)
	unknown := snowflake.ID(999)

	tests := []struct {
		name   string
		call   func() error
		target error
	}{
		{
			name:   "skip",
			call:   func() error { _, err := f.manager.Skip(unknown, 1); return err },
			target: playback.ErrNotPlaying,
		},
		{
			name:   "skip zero",
			call:   func() error { _, err := f.manager.Skip(unknown, 0); return err },
			target: playback.ErrInvalidSkip,
		},
		{
			name:   "pause",
			call:   func() error { return f.manager.Pause(unknown) },
			target: playback.ErrNotPlaying,
		},
		{
			name:   "unpause",
			call:   func() error { return f.manager.Unpause(unknown) },
			target: playback.ErrNotPaused,
		},
		{
			name:   "stop",
			call:   func() error { return f.manager.Stop(context.Background(), unknown) },
			target: playback.ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertIs(t, tt.call(), tt.target)
		})
	}

	_, ok := f.manager.Snapshot(unknown)
	assert.False(t, ok, "lookups never create state")
}

func TestManager_PauseUnpauseSkip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		_, err := f.manager.Play(ctx, playInput(q, 1))
		require.NoError(t, err)
	}

	require.NoError(t, f.manager.Pause(guildID))
	snap, _ := f.manager.Snapshot(guildID)
	assert.Equal(t, playback.Paused("one"), snap.Status)

	require.NoError(t, f.manager.Unpause(guildID))

	result, err := f.manager.Skip(guildID, 2)
	require.NoError(t, err)
	assert.Equal(t, playback.SkipResult{Dropped: 1, Remaining: 1}, result)

	assert.Eventually(t, func() bool {
		snap, _ := f.manager.Snapshot(guildID)
		return snap.Status == playback.Playing("three")
	}, time.Second, 10*time.Millisecond)
}

func TestManager_StopTearsDownThroughLeaveHook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.manager.Play(ctx, playInput("one", 1))
	require.NoError(t, err)
	_, err = f.manager.Play(ctx, playInput("two", 1))
	require.NoError(t, err)

	require.NoError(t, f.manager.Stop(ctx, guildID))

	snap, ok := f.manager.Snapshot(guildID)
	require.True(t, ok)
	assert.Equal(t, playback.Stopped(), snap.Status)
	assert.Empty(t, snap.Queue)
	assert.False(t, snap.Connected)

	assert.Eventually(t, func() bool {
		return f.observer.Has(playback.EventTornDown)
	}, time.Second, 10*time.Millisecond)
}

func TestManager_Join(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.manager.Join(context.Background(), guildID, snowflake.ID(200)))

	snap, ok := f.manager.Snapshot(guildID)
	require.True(t, ok)
	assert.True(t, snap.Connected)
	assert.Equal(t, playback.Stopped(), snap.Status)
	assert.Len(t, f.manager.Snapshots(), 1)
}

func TestManager_ObserverPanicKeepsLoopAlive(t *testing.T) {
	f := newFixture(t, nil)
	f.observer.mu.Lock()
	f.observer.panics = true
	f.observer.mu.Unlock()

	_, err := f.manager.Play(context.Background(), playInput("one", 1))
	require.NoError(t, err)
	_, err = f.manager.Play(context.Background(), playInput("two", 1))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.observer.Has(playback.EventTrackStarted) && f.observer.Has(playback.EventSongQueued)
	}, time.Second, 10*time.Millisecond)
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.manager.Play(context.Background(), playInput("one", 1))
	require.NoError(t, err)

	f.manager.Close()
	f.manager.Close()

	_, err = f.manager.Play(context.Background(), playInput("two", 1))
	assertIs(t, err, ErrClosed)
	assertIs(t, f.manager.Join(context.Background(), guildID, snowflake.ID(200)), ErrClosed)

	snap, _ := f.manager.Snapshot(guildID)
	assert.Equal(t, playback.Stopped(), snap.Status)
}
