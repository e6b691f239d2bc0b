// Package youtube provides a YouTube link resolver.
package youtube

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	youtube "github.com/kkdai/youtube/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// ErrNoAudio is returned when a video has no format carrying audio.
var ErrNoAudio = errors.New("no audio formats found for video")

// Client resolves YouTube links to stream URLs.
type Client struct {
	client *youtube.Client
}

// NewClient creates a new YouTube client.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: timeout},
		},
	}
}

// ResolveLink fetches video metadata and an audio stream URL.
func (c *Client) ResolveLink(ctx context.Context, link string) (*track.Playable, error) {
	videoID, err := youtube.ExtractVideoID(link)
	if err != nil {
		return nil, errors.Wrapf(err, "not a youtube video link: %s", link)
	}

	video, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get video %s", videoID)
	}

	format, err := pickAudioFormat(video.Formats)
	if err != nil {
		return nil, errors.Wrapf(err, "video %s", videoID)
	}

	streamURL, err := c.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get stream url for %s", videoID)
	}

	zlog.Debug().Msgf("resolved youtube video: id=%s title=%q itag=%d mime=%s", video.ID, video.Title, format.ItagNo, format.MimeType)

	return &track.Playable{
		Title:     video.Title,
		URL:       "https://www.youtube.com/watch?v=" + video.ID,
		Duration:  video.Duration,
		StreamURL: streamURL,
	}, nil
}

// pickAudioFormat prefers audio-only formats, falling back to any format with audio.
func pickAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, ErrNoAudio
	}

	candidates := withAudio.Type("audio/")
	if len(candidates) == 0 {
		candidates = withAudio
	}
	candidates.Sort()
	return &candidates[0], nil
}
