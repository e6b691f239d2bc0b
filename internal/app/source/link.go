package source

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/guildbox/internal/domain/track"
)

// LinkSourceConfig represents the settings of a LinkSource.
type LinkSourceConfig struct {
	Hosts []string `mapstructure:"hosts"`
}

// LinkSource resolves links whose host is in its host list.
// An empty host list accepts every link.
type LinkSource struct {
	name     string
	resolver LinkResolver
	hosts    []string
}

// NewLinkSource creates a link source.
func NewLinkSource(name string, resolver LinkResolver, hosts []string) *LinkSource {
	return &LinkSource{
		name:     name,
		resolver: resolver,
		hosts:    normalizeHosts(hosts),
	}
}

func (s *LinkSource) Name() string {
	return s.name
}

func (s *LinkSource) Supports(req track.PlayRequest) bool {
	if !req.IsLink() {
		return false
	}
	if len(s.hosts) == 0 {
		return true
	}
	return matchHost(req.Host(), s.hosts)
}

func (s *LinkSource) Resolve(ctx context.Context, req track.PlayRequest) (*track.Playable, error) {
	p, err := s.resolver.ResolveLink(ctx, req.Value())
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to resolve link", s.name)
	}
	p.Source = s.name
	return p, nil
}
