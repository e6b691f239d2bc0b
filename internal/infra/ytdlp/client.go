// Package ytdlp resolves searches and links with the yt-dlp binary.
package ytdlp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/guildbox/internal/domain/track"
)

// printTemplate is the per-entry output of a lookup, one tab-separated line.
const printTemplate = "%(title)s\t%(webpage_url)s\t%(duration)s\t%(url)s"

// audioFormat selects the best audio-only stream, falling back to muxed.
const audioFormat = "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best"

var (
	// ErrNoResult is returned when yt-dlp prints nothing usable.
	ErrNoResult = errors.New("yt-dlp returned no result")
	// ErrDRM is returned for DRM protected media.
	ErrDRM = errors.New("media is DRM protected")
)

// Client runs yt-dlp lookups.
// Identical concurrent lookups share one process. The shared process is not
// tied to any one caller's context; each caller stops waiting on its own.
type Client struct {
	proxy   string
	timeout time.Duration
	group   singleflight.Group
	exec    func(ctx context.Context, target string) (*track.Playable, error)
}

// NewClient creates a new yt-dlp client.
// timeout bounds a single yt-dlp process.
func NewClient(proxy string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{proxy: proxy, timeout: timeout}
	c.exec = c.run
	return c
}

// Search returns the first search result for query.
func (c *Client) Search(ctx context.Context, query string) (*track.Playable, error) {
	return c.lookup(ctx, "ytsearch1:"+query)
}

// ResolveLink resolves any link yt-dlp supports.
func (c *Client) ResolveLink(ctx context.Context, link string) (*track.Playable, error) {
	return c.lookup(ctx, link)
}

func (c *Client) lookup(ctx context.Context, target string) (*track.Playable, error) {
	ch := c.group.DoChan(target, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.exec(runCtx, target)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			zlog.Debug().Msgf("yt-dlp lookup shared: target=%q", target)
		}
		p := *res.Val.(*track.Playable)
		return &p, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "yt-dlp lookup abandoned for %q", target)
	}
}

func (c *Client) run(ctx context.Context, target string) (*track.Playable, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist().
		Format(audioFormat).
		Print(printTemplate)

	if c.proxy != "" {
		cmd.Proxy(c.proxy)
	}

	start := time.Now()
	res, err := cmd.Run(ctx, target)
	if err != nil {
		if res != nil && strings.Contains(strings.ToLower(res.Stderr), "drm") {
			return nil, errors.Mark(errors.Wrapf(err, "yt-dlp %q", target), ErrDRM)
		}
		return nil, errors.Wrapf(err, "yt-dlp failed for %q", target)
	}
	zlog.Debug().Msgf("yt-dlp finished: target=%q elapsed=%s", target, time.Since(start))

	return parseOutput(res.Stdout)
}

// parseOutput reads the first complete line printed with printTemplate.
func parseOutput(stdout string) (*track.Playable, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < 4 {
			continue
		}

		title, page, stream := parts[0], parts[1], parts[3]
		if stream == "" || stream == "NA" {
			continue
		}
		if title == "NA" {
			title = page
		}

		return &track.Playable{
			Title:     title,
			URL:       naToEmpty(page),
			Duration:  parseSeconds(parts[2]),
			StreamURL: stream,
		}, nil
	}
	return nil, ErrNoResult
}

// parseSeconds parses yt-dlp's duration, which may be fractional or "NA".
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func naToEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}
