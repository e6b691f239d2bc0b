package playback

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/osa030/guildbox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // Track started playing
	EventTrackEnded                     // Active track finished
	EventSongQueued                     // Song appended to the queue
	EventSongsSkipped                   // Skip requested
	EventStateChanged                   // Playback state changed (pause/resume)
	EventQueueEmpty                     // Queue drained, guild went idle
	EventResolveFailed                  // Song could not be resolved or started
	EventTornDown                       // Guild session torn down after leaving voice
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventSongQueued:
		return "song_queued"
	case EventSongsSkipped:
		return "songs_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEmpty:
		return "queue_empty"
	case EventResolveFailed:
		return "resolve_failed"
	case EventTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type      EventType
	GuildID   snowflake.ID
	Song      *track.QueuedSong // Song concerned (nil for some events)
	Status    Status            // Status after the event
	QueueSize int               // Queue length after the event
	Err       error             // Failure cause for EventResolveFailed
}
