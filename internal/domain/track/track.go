// Package track provides the song and request domain entities.
package track

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// Playable represents a resolved track ready to be streamed.
type Playable struct {
	Title     string        // Track title reported by the source
	URL       string        // Canonical page URL
	Duration  time.Duration // Track duration (zero if unknown)
	StreamURL string        // Direct audio stream location
	Source    string        // Name of the source that resolved it
}

// Requester represents the member who requested the song.
type Requester struct {
	ID   snowflake.ID // Chat user ID
	Name string       // Display name
}

// QueuedSong represents a requested song that has not started yet.
// Resolution is deferred until the song reaches the head of the queue.
type QueuedSong struct {
	ID            uuid.UUID    // Unique song ID
	OriginChannel snowflake.ID // Text channel to notify when it starts
	DisplayName   string       // Request text shown to users
	Request       PlayRequest  // What to resolve
	Requester     Requester    // Requester info
	AddedAt       time.Time    // Time when added
}

// NewQueuedSong creates a queued song for the given request.
func NewQueuedSong(origin snowflake.ID, req PlayRequest, requester Requester) QueuedSong {
	return QueuedSong{
		ID:            uuid.New(),
		OriginChannel: origin,
		DisplayName:   req.String(),
		Request:       req,
		Requester:     requester,
		AddedAt:       time.Now(),
	}
}
