package playback

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/track"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	gate    chan struct{}
	entered chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		fail:    make(map[string]error),
		entered: make(chan string, 16),
	}
}

func (s *fakeSource) Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Value())
	gate := s.gate
	err := s.fail[req.Value()]
	s.mu.Unlock()

	select {
	case s.entered <- req.Value():
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &track.Playable{
		Title:     "title:" + req.Value(),
		URL:       "https://example.com/" + req.Value(),
		StreamURL: "https://cdn.example.com/" + req.Value(),
	}, nil
}

func (s *fakeSource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

type fakeHandle struct {
	mu        sync.Mutex
	title     string
	stopped   bool
	paused    bool
	finished  bool
	pauseErr  error
	callbacks []func()
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.finish()
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pauseErr != nil {
		return h.pauseErr
	}
	h.paused = true
	return nil
}

func (h *fakeHandle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
	return nil
}

func (h *fakeHandle) OnFinished(fn func()) {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		go fn()
		return
	}
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

// finish simulates the track reaching its end.
func (h *fakeHandle) finish() {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	callbacks := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()

	for _, fn := range callbacks {
		go fn()
	}
}

func (h *fakeHandle) IsPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *fakeHandle) IsStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type fakeChannel struct {
	mu           sync.Mutex
	handles      []*fakeHandle
	startErr     error
	disconnects  int
	onDisconnect func()
}

func (c *fakeChannel) Start(ctx context.Context, t *track.Playable) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}
	h := &fakeHandle{title: t.Title}
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeChannel) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.disconnects++
	hook := c.onDisconnect
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (c *fakeChannel) Handles() []*fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*fakeHandle, len(c.handles))
	copy(out, c.handles)
	return out
}

func (c *fakeChannel) Last() *fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.handles) == 0 {
		return nil
	}
	return c.handles[len(c.handles)-1]
}

func (c *fakeChannel) Titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.handles))
	for _, h := range c.handles {
		out = append(out, h.title)
	}
	return out
}

type sentMessage struct {
	channel snowflake.ID
	text    string
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []sentMessage
	err      error
}

func (n *fakeNotifier) Send(ctx context.Context, channelID snowflake.ID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, sentMessage{channel: channelID, text: text})
	return n.err
}

func (n *fakeNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.text)
	}
	return out
}

func (n *fakeNotifier) Messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.messages))
	copy(out, n.messages)
	return out
}
