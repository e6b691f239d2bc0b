package source

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

// ErrUnsupported is returned when no source supports a request.
var ErrUnsupported = errors.New("no source supports this request")

// SourceWithMetadata wraps a source with its configured display name.
type SourceWithMetadata struct {
	Source      Source
	DisplayName string
}

// Chain tries each supporting source in order until one resolves the request.
type Chain struct {
	sources []SourceWithMetadata
}

// NewChain creates a new source chain.
func NewChain(sources []SourceWithMetadata) *Chain {
	return &Chain{
		sources: sources,
	}
}

// Resolve returns the first successful resolution.
// Failures are marked with playback.ErrResolution.
func (c *Chain) Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	var lastErr error
	tried := 0

	for i, sm := range c.sources {
		if !sm.Source.Supports(req) {
			continue
		}
		tried++
		zlog.Debug().Msgf("trying source: index=%d total=%d name=%s source_type=%s request=%q",
			i+1, len(c.sources), sm.DisplayName, sm.Source.Name(), req.Value())

		p, err := sm.Source.Resolve(ctx, req)
		if err == nil && p != nil {
			zlog.Info().Msgf("source resolved request: source=%s title=%q", sm.DisplayName, p.Title)
			return p, nil
		}
		if err == nil {
			err = errors.Newf("%s returned no track", sm.DisplayName)
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		zlog.Warn().Msgf("source failed, trying next: source=%s error=%v", sm.DisplayName, err)
	}

	if tried == 0 {
		return nil, errors.Mark(errors.Wrapf(ErrUnsupported, "%s %q", req.Kind(), req.Value()), playback.ErrResolution)
	}
	return nil, errors.Mark(lastErr, playback.ErrResolution)
}

// Names returns the display names of all sources in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.sources))
	for _, sm := range c.sources {
		names = append(names, sm.DisplayName)
	}
	return names
}

// normalizeHosts lowercases hosts and strips a leading "www.".
func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
