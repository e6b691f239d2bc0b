// Package notification provides the notification manager for chat replies.
package notification

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// MaxMessageLength is the longest message a chat channel accepts.
const MaxMessageLength = 2000

// Sender delivers a text message to a channel.
type Sender interface {
	SendMessage(channelID string, content string) error
}

// Config holds notification manager configuration.
type Config struct {
	Timeout    time.Duration // Per-send timeout
	RatePerSec float64       // Sustained sends per second per channel (0 = unlimited)
	Burst      int           // Burst size for each channel's rate limiter
}

// Manager sends status messages with a timeout and a per-channel rate limit.
// Channels never wait on each other.
type Manager struct {
	sender  Sender
	timeout time.Duration
	limit   rate.Limit
	burst   int

	limiters sync.Map // snowflake.ID -> *rate.Limiter
}

// NewManager creates a new notification manager.
func NewManager(sender Sender, cfg Config) *Manager {
	limit := rate.Inf
	burst := 0
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = cfg.Burst
		if burst <= 0 {
			burst = 1
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Manager{
		sender:  sender,
		timeout: timeout,
		limit:   limit,
		burst:   burst,
	}
}

// limiter returns the channel's rate limiter, creating it on first use.
func (m *Manager) limiter(channelID snowflake.ID) *rate.Limiter {
	if l, ok := m.limiters.Load(channelID); ok {
		return l.(*rate.Limiter)
	}
	l, _ := m.limiters.LoadOrStore(channelID, rate.NewLimiter(m.limit, m.burst))
	return l.(*rate.Limiter)
}

// Send sends text to the channel.
// The send is abandoned (but not cancelled upstream) once the timeout passes.
func (m *Manager) Send(ctx context.Context, channelID snowflake.ID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.limiter(channelID).Wait(ctx); err != nil {
		return errors.Wrap(err, "notification rate limit wait failed")
	}

	done := make(chan error, 1)
	go func() {
		done <- m.sender.SendMessage(channelID.String(), truncate(text, MaxMessageLength))
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "failed to send message to channel %s", channelID)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "timed out sending message to channel %s", channelID)
	}
}

// truncate shortens text to at most max bytes without splitting a rune.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	const ellipsis = "..."
	cut := max - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + ellipsis
}
