package httpapi

import (
	"time"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

// GuildInfo is the admin view of one guild.
type GuildInfo struct {
	GuildID    string     `json:"guild_id"`
	State      string     `json:"state"`
	NowPlaying string     `json:"now_playing,omitempty"`
	Connected  bool       `json:"connected"`
	Advancing  bool       `json:"advancing"`
	QueueSize  int        `json:"queue_size"`
	Queue      []SongInfo `json:"queue,omitempty"`
}

// SongInfo is a queued song.
type SongInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Requester string `json:"requester"`
	AddedAt   string `json:"added_at"`
}

// ListGuildsResponse is the body of GET /v1/guilds.
type ListGuildsResponse struct {
	Guilds []GuildInfo `json:"guilds"`
}

// ActionResponse is the body of every command endpoint.
type ActionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Dropped   int    `json:"dropped,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

func toGuildInfo(snap playback.Snapshot, withQueue bool) GuildInfo {
	info := GuildInfo{
		GuildID:   snap.GuildID.String(),
		State:     snap.Status.State.String(),
		Connected: snap.Connected,
		Advancing: snap.Advancing,
		QueueSize: len(snap.Queue),
	}
	if snap.Status.State != playback.StateStopped {
		info.NowPlaying = snap.Status.Name
	}
	if withQueue {
		info.Queue = make([]SongInfo, 0, len(snap.Queue))
		for _, song := range snap.Queue {
			info.Queue = append(info.Queue, toSongInfo(song))
		}
	}
	return info
}

func toSongInfo(song track.QueuedSong) SongInfo {
	return SongInfo{
		ID:        song.ID.String(),
		Name:      song.DisplayName,
		Kind:      song.Request.Kind().String(),
		Requester: song.Requester.Name,
		AddedAt:   song.AddedAt.Format(time.RFC3339),
	}
}
