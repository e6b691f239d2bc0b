package playback

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/track"
)

// TrackSource resolves play requests into playable tracks.
// Implementations must be safe for concurrent use.
type TrackSource interface {
	Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error)
}

// Channel is an active audio output connection for one guild.
type Channel interface {
	// Start begins streaming the track and returns its handle.
	Start(ctx context.Context, t *track.Playable) (Handle, error)
	// Disconnect leaves the voice session.
	Disconnect(ctx context.Context) error
}

// Handle controls one transporting track.
type Handle interface {
	Stop() error
	Pause() error
	Resume() error
	// OnFinished registers a callback fired exactly once, on another
	// goroutine, when the track ends for any reason.
	OnFinished(fn func())
}

// Notifier sends status messages to a text channel.
type Notifier interface {
	Send(ctx context.Context, channelID snowflake.ID, text string) error
}
