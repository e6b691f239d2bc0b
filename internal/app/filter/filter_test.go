package filter

import (
	"context"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

func queued(requester snowflake.ID, req track.PlayRequest) track.QueuedSong {
	return track.NewQueuedSong(snowflake.ID(200), req, track.Requester{ID: requester, Name: "member"})
}

func newRequest(song track.QueuedSong, queue ...track.QueuedSong) Request {
	return Request{
		Song: song,
		Guild: playback.Snapshot{
			GuildID: snowflake.ID(100),
			Status:  playback.Playing("current"),
			Queue:   queue,
		},
	}
}

func TestQueueLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		maxQueue     int
		queueLen     int
		wantAccepted bool
	}{
		{
			name:         "room left",
			maxQueue:     3,
			queueLen:     2,
			wantAccepted: true,
		},
		{
			name:         "queue full",
			maxQueue:     3,
			queueLen:     3,
			wantAccepted: false,
		},
		{
			name:         "empty queue",
			maxQueue:     1,
			queueLen:     0,
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &QueueLimitFilter{}
			require.NoError(t, f.ValidateConfig(map[string]any{"max_queue": tt.maxQueue}))

			queue := make([]track.QueuedSong, 0, tt.queueLen)
			for i := 0; i < tt.queueLen; i++ {
				queue = append(queue, queued(snowflake.ID(i+1), track.NewSearch("song")))
			}

			result := f.Check(context.Background(), newRequest(queued(99, track.NewSearch("new")), queue...))
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "queue_full", result.Code)
			}
		})
	}
}

func TestQueueLimitFilter_Defaults(t *testing.T) {
	f := &QueueLimitFilter{}
	require.NoError(t, f.ValidateConfig(nil))
	assert.Equal(t, 50, f.config.MaxQueue)

	assert.Error(t, f.ValidateConfig(map[string]any{"max_queue": -1}))
}

func TestUserPendingFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		maxPending   int
		queue        []snowflake.ID
		wantAccepted bool
	}{
		{
			name:         "under limit",
			maxPending:   2,
			queue:        []snowflake.ID{1, 2, 2},
			wantAccepted: true,
		},
		{
			name:         "at limit",
			maxPending:   2,
			queue:        []snowflake.ID{1, 2, 1},
			wantAccepted: false,
		},
		{
			name:         "other members do not count",
			maxPending:   1,
			queue:        []snowflake.ID{2, 3, 4},
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &UserPendingFilter{}
			require.NoError(t, f.ValidateConfig(map[string]any{"max_pending": tt.maxPending}))

			queue := make([]track.QueuedSong, 0, len(tt.queue))
			for _, id := range tt.queue {
				queue = append(queue, queued(id, track.NewSearch("song")))
			}

			result := f.Check(context.Background(), newRequest(queued(1, track.NewSearch("new")), queue...))
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "user_pending", result.Code)
			}
		})
	}
}

func TestBlockedTermsFilter_Check(t *testing.T) {
	f := &BlockedTermsFilter{}
	require.NoError(t, f.ValidateConfig(map[string]any{"terms": []any{"Earrape", " 10 hours "}}))

	tests := []struct {
		name         string
		req          track.PlayRequest
		wantAccepted bool
	}{
		{
			name:         "clean search",
			req:          track.NewSearch("never gonna give you up"),
			wantAccepted: true,
		},
		{
			name:         "case-insensitive match",
			req:          track.NewSearch("EARRAPE remix"),
			wantAccepted: false,
		},
		{
			name:         "term inside link",
			req:          track.NewLink("https://example.com/nyan-cat-10 hours"),
			wantAccepted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), newRequest(queued(1, tt.req)))
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "blocked_term", result.Code)
			}
		})
	}
}

func TestBlockedTermsFilter_ValidateConfig(t *testing.T) {
	f := &BlockedTermsFilter{}
	assert.Error(t, f.ValidateConfig(nil), "terms are required")
	assert.Error(t, f.ValidateConfig(map[string]any{"terms": []any{""}}))
}

func TestLinkHostFilter_Check(t *testing.T) {
	f := &LinkHostFilter{}
	require.NoError(t, f.ValidateConfig(map[string]any{"allowed_hosts": []any{"youtube.com", "www.youtu.be"}}))

	tests := []struct {
		name         string
		req          track.PlayRequest
		wantAccepted bool
	}{
		{
			name:         "search always passes",
			req:          track.NewSearch("anything"),
			wantAccepted: true,
		},
		{
			name:         "allowed host",
			req:          track.NewLink("https://www.youtube.com/watch?v=abc"),
			wantAccepted: true,
		},
		{
			name:         "allowed subdomain",
			req:          track.NewLink("https://music.youtube.com/watch?v=abc"),
			wantAccepted: true,
		},
		{
			name:         "short host",
			req:          track.NewLink("https://youtu.be/abc"),
			wantAccepted: true,
		},
		{
			name:         "suffix lookalike",
			req:          track.NewLink("https://notyoutube.com/watch?v=abc"),
			wantAccepted: false,
		},
		{
			name:         "other host",
			req:          track.NewLink("https://soundcloud.com/artist/song"),
			wantAccepted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), newRequest(queued(1, tt.req)))
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "host_not_allowed", result.Code)
			}
		})
	}
}

func TestDuplicateTrackFilter_Check(t *testing.T) {
	f := &DuplicateTrackFilter{}
	require.NoError(t, f.ValidateConfig(nil))

	queue := []track.QueuedSong{
		queued(2, track.NewSearch("Daft Punk  One More Time")),
		queued(3, track.NewLink("https://youtu.be/abc")),
	}

	tests := []struct {
		name         string
		req          track.PlayRequest
		wantAccepted bool
	}{
		{
			name:         "normalized search duplicate",
			req:          track.NewSearch("daft punk one more time"),
			wantAccepted: false,
		},
		{
			name:         "same link",
			req:          track.NewLink("https://youtu.be/abc"),
			wantAccepted: false,
		},
		{
			name:         "new song",
			req:          track.NewSearch("daft punk around the world"),
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), newRequest(queued(1, tt.req), queue...))
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "duplicate_track", result.Code)
			}
		})
	}
}

func TestRegisteredFilters(t *testing.T) {
	registered := GetRegistered()

	for _, name := range []string{
		"queue_limit_filter",
		"user_pending_filter",
		"blocked_terms_filter",
		"link_host_filter",
		"duplicate_track_filter",
	} {
		factory, ok := registered[name]
		require.True(t, ok, name)

		f := factory()
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Description())
		assert.NotEmpty(t, f.ReturnCodes())
	}
}
