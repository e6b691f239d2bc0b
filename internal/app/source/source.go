// Package source resolves play requests into playable tracks.
package source

import (
	"context"
	"strings"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Source resolves the play requests it supports.
type Source interface {
	// Name returns the source type name.
	Name() string
	// Supports reports whether the source can resolve the request.
	Supports(req track.PlayRequest) bool
	// Resolve looks up a playable track for the request.
	Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error)
}

// LinkResolver resolves a direct media link.
type LinkResolver interface {
	ResolveLink(ctx context.Context, link string) (*track.Playable, error)
}

// Searcher resolves a free-text query to its best match.
type Searcher interface {
	Search(ctx context.Context, query string) (*track.Playable, error)
}

// QueryTranslator turns a link from a catalogue service into a search query.
type QueryTranslator interface {
	SearchQuery(ctx context.Context, link string) (string, error)
}

// matchHost reports whether host equals one of hosts or is a subdomain of one.
func matchHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
