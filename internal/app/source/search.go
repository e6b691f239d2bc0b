package source

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/guildbox/internal/domain/track"
)

// SearchSource resolves free-text queries, and optionally any link.
type SearchSource struct {
	name     string
	searcher Searcher
	links    LinkResolver // nil disables links
}

// NewSearchSource creates a search source.
func NewSearchSource(name string, searcher Searcher, links LinkResolver) *SearchSource {
	return &SearchSource{
		name:     name,
		searcher: searcher,
		links:    links,
	}
}

func (s *SearchSource) Name() string {
	return s.name
}

func (s *SearchSource) Supports(req track.PlayRequest) bool {
	if req.IsLink() {
		return s.links != nil
	}
	return s.searcher != nil
}

func (s *SearchSource) Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	var (
		p   *track.Playable
		err error
	)
	if req.IsLink() {
		p, err = s.links.ResolveLink(ctx, req.Value())
	} else {
		p, err = s.searcher.Search(ctx, req.Value())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to resolve %q", s.name, req.Value())
	}
	p.Source = s.name
	return p, nil
}
